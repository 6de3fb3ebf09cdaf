package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// entry is one line of the console transcript.
type entry struct {
	ID       int
	ReplyTo  int
	Author   string
	Text     string
	ImageURL string
	FromBot  bool
}

type entryMsg struct{ entry entry }

type reactionMsg struct {
	MessageID int
	Emoji     string
}

type typingMsg struct{}

// localChat is an in-process chat room. Bot output is delivered to the UI as
// tea messages; message ids are allocated locally.
type localChat struct {
	mu      sync.Mutex
	nextID  int
	members int
	send    func(tea.Msg)
}

func newLocalChat(members int) *localChat {
	return &localChat{nextID: 1, members: members, send: func(tea.Msg) {}}
}

func (c *localChat) setSender(send func(tea.Msg)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.send = send
}

func (c *localChat) allocate() (int, func(tea.Msg)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id, c.send
}

// post records a participant message and returns its id.
func (c *localChat) post(author, text string, replyTo int) entry {
	id, _ := c.allocate()
	return entry{ID: id, ReplyTo: replyTo, Author: author, Text: text}
}

func (c *localChat) ReplyText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, send := c.allocate()
	send(entryMsg{entry{ID: id, ReplyTo: replyTo, Author: AgentName, Text: text, FromBot: true}})
	return id, nil
}

func (c *localChat) ReplyPhoto(ctx context.Context, chatID int64, replyTo int, photoURL, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, send := c.allocate()
	send(entryMsg{entry{ID: id, ReplyTo: replyTo, Author: AgentName, Text: caption, ImageURL: photoURL, FromBot: true}})
	return id, nil
}

func (c *localChat) sender() func(tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send
}

func (c *localChat) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	c.sender()(reactionMsg{MessageID: messageID, Emoji: emoji})
	return nil
}

func (c *localChat) SendTyping(ctx context.Context, chatID int64) error {
	c.sender()(typingMsg{})
	return nil
}

// MemberCount counts the bot as a member, as chat platforms do.
func (c *localChat) MemberCount(ctx context.Context, chatID int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members, nil
}
