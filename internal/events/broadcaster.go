package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSceneStarted   EventType = "scene.started"
	EventTypeActionResolved EventType = "action.resolved"
	EventTypeSceneEnded     EventType = "scene.ended"
	EventTypeSceneReset     EventType = "scene.reset"
	EventTypeRequestFailed  EventType = "request.failed"
)

// Event is the JSON payload published for every game lifecycle change
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	ChatID    int64          `json:"chat_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel for one chat
func Channel(chatID int64) string {
	return "vignette:chat:" + strconv.FormatInt(chatID, 10)
}

// Connect parses redisURL and verifies the connection
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis for event broadcasting", "addr", opt.Addr)
	return rdb, nil
}

// Broadcaster publishes game events to Redis Pub/Sub
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSceneStarted publishes a scene.started event
func (b *Broadcaster) PublishSceneStarted(ctx context.Context, chatID int64, requestID, description, imageURL string) error {
	return b.publishToChat(ctx, Event{
		Type:      EventTypeSceneStarted,
		RequestID: requestID,
		ChatID:    chatID,
		Data: map[string]any{
			"description": description,
			"image_url":   imageURL,
		},
	})
}

// PublishActionResolved publishes an action.resolved event
func (b *Broadcaster) PublishActionResolved(ctx context.Context, chatID int64, requestID, name, outcome string) error {
	return b.publishToChat(ctx, Event{
		Type:      EventTypeActionResolved,
		RequestID: requestID,
		ChatID:    chatID,
		Data: map[string]any{
			"name":    name,
			"outcome": outcome,
		},
	})
}

// PublishSceneEnded publishes a scene.ended event
func (b *Broadcaster) PublishSceneEnded(ctx context.Context, chatID int64, requestID, summary string) error {
	return b.publishToChat(ctx, Event{
		Type:      EventTypeSceneEnded,
		RequestID: requestID,
		ChatID:    chatID,
		Data: map[string]any{
			"summary": summary,
		},
	})
}

// PublishSceneReset publishes a scene.reset event
func (b *Broadcaster) PublishSceneReset(ctx context.Context, chatID int64, requestID string) error {
	return b.publishToChat(ctx, Event{
		Type:      EventTypeSceneReset,
		RequestID: requestID,
		ChatID:    chatID,
	})
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, chatID int64, requestID, errorMsg string) error {
	return b.publishToChat(ctx, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		ChatID:    chatID,
		Data: map[string]any{
			"status": "failed",
			"error":  errorMsg,
		},
	})
}

// Subscribe opens a subscription to one chat's events. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, chatID int64) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(chatID))
}

// Ping checks the Redis connection.
func (b *Broadcaster) Ping(ctx context.Context) error {
	return b.redisClient.Ping(ctx).Err()
}

// publishToChat publishes an event to the chat-specific channel
func (b *Broadcaster) publishToChat(ctx context.Context, event Event) error {
	channel := Channel(event.ChatID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
