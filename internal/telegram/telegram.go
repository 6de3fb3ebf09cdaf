// Package telegram adapts the Telegram Bot API to the game: it turns updates
// into queue requests and implements game.Chat for replies.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jwebster45206/vignette/pkg/queue"
	"github.com/jwebster45206/vignette/pkg/state"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Enqueuer accepts requests for processing.
type Enqueuer interface {
	Enqueue(req *queue.Request) error
}

// Client talks to Telegram.
type Client struct {
	bot         botAPI
	logger      *slog.Logger
	pollTimeout int
}

// New connects to Telegram with the bot token.
func New(token string, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on Telegram", "bot", bot.Self.UserName)
	return newClient(bot, logger), nil
}

func newClient(bot botAPI, logger *slog.Logger) *Client {
	return &Client{
		bot:         bot,
		logger:      logger,
		pollTimeout: 60,
	}
}

// ReplyText posts text in reply to replyTo.
func (c *Client) ReplyText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// ReplyPhoto posts the image at photoURL with a caption in reply to replyTo.
func (c *Client) ReplyPhoto(ctx context.Context, chatID int64, replyTo int, photoURL, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ReplyToMessageID = replyTo
	sent, err := c.bot.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("failed to send photo: %w", err)
	}
	return sent.MessageID, nil
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// React sets an emoji reaction on a message. The library predates
// setMessageReaction, so the call is made directly.
func (c *Client) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reaction, err := json.Marshal([]reactionType{{Type: "emoji", Emoji: emoji}})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.Itoa(messageID),
		"reaction":   string(reaction),
	}
	if _, err := c.bot.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}
	return nil
}

// SendTyping shows the typing indicator.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("failed to send typing action: %w", err)
	}
	return nil
}

// MemberCount returns the number of chat members, bots included.
func (c *Client) MemberCount(ctx context.Context, chatID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := c.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get member count: %w", err)
	}
	return count, nil
}

// Poll receives message updates until ctx is cancelled and hands every
// recognised one to the enqueuer.
func (c *Client) Poll(ctx context.Context, enqueuer Enqueuer) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	u.AllowedUpdates = []string{"message"}

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	c.logger.Info("Polling Telegram for updates")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopped polling Telegram")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			req, ok := ToRequest(update)
			if !ok {
				continue
			}
			if err := enqueuer.Enqueue(req); err != nil {
				c.logger.Error("Failed to enqueue request",
					"chat_id", req.ChatID,
					"request_type", req.Type,
					"error", err)
			}
		}
	}
}

var commands = map[string]queue.RequestType{
	"help":  queue.RequestTypeHelp,
	"start": queue.RequestTypeStart,
	"end":   queue.RequestTypeEnd,
	"reset": queue.RequestTypeReset,
}

// ToRequest converts a Telegram update. It reports false for updates the game
// ignores: non-message updates, unknown commands and plain messages.
func ToRequest(update tgbotapi.Update) (*queue.Request, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil, false
	}

	var req *queue.Request
	switch {
	case msg.IsCommand():
		t, known := commands[strings.ToLower(msg.Command())]
		if !known {
			return nil, false
		}
		req = queue.NewRequest(t, msg.Chat.ID, msg.MessageID)
		req.Text = strings.TrimSpace(msg.CommandArguments())
	case msg.ReplyToMessage != nil:
		req = queue.NewRequest(queue.RequestTypeReply, msg.Chat.ID, msg.MessageID)
		req.ReplyToID = msg.ReplyToMessage.MessageID
		req.Text = msg.Text
		if req.Text == "" {
			req.Text = msg.Caption
		}
	default:
		return nil, false
	}

	if msg.From != nil {
		req.UserID = msg.From.ID
		req.UserName = state.DisplayName(msg.From.FirstName, msg.From.LastName, msg.From.UserName, msg.From.ID)
	}
	return req, true
}
