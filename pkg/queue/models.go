package queue

import (
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the kind of inbound chat event
type RequestType string

const (
	RequestTypeHelp  RequestType = "help"
	RequestTypeStart RequestType = "start"
	RequestTypeEnd   RequestType = "end"
	RequestTypeReset RequestType = "reset"

	// RequestTypeReply is a message replying to another message in the chat
	RequestTypeReply RequestType = "reply"
)

// Request is one inbound chat event, independent of the chat platform
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	ChatID    int64       `json:"chat_id"`
	MessageID int         `json:"message_id"`

	// ReplyToID is the message being replied to, zero when none
	ReplyToID int `json:"reply_to_id,omitempty"`

	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`

	// Text is the command argument for start, the message body for reply
	Text string `json:"text,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest stamps a request with a fresh id and enqueue time
func NewRequest(t RequestType, chatID int64, messageID int) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       t,
		ChatID:     chatID,
		MessageID:  messageID,
		EnqueuedAt: time.Now(),
	}
}

// IsCommand reports whether the request came from a slash command
func (r *Request) IsCommand() bool {
	return r.Type != RequestTypeReply
}
