// Package game runs the per-chat scene state machine: start a scene, collect one
// action per participant, end it on request or once a majority has acted.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jwebster45206/vignette/pkg/pipeline"
	"github.com/jwebster45206/vignette/pkg/queue"
	"github.com/jwebster45206/vignette/pkg/state"
)

const (
	AckReaction   = "👍"
	WarningPrefix = "⚠️ "
	ErrorPrefix   = "❌ "
)

const HelpText = "1. /start <description> to create a new scene. There can be only one active scene.\n" +
	"2. Reply to the scene message to act. You may only act once.\n" +
	"3. /end to complete the scene. Scenes also autocomplete once the majority of chat members reply.\n" +
	"\n" +
	"/reset to reset the scene.\n"

// Chat is the outbound side of a chat platform.
type Chat interface {
	// ReplyText posts text in reply to replyTo and returns the new message id.
	ReplyText(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	// ReplyPhoto posts an image by URL with a caption and returns the new message id.
	ReplyPhoto(ctx context.Context, chatID int64, replyTo int, photoURL, caption string) (int, error)
	React(ctx context.Context, chatID int64, messageID int, emoji string) error
	SendTyping(ctx context.Context, chatID int64) error
	MemberCount(ctx context.Context, chatID int64) (int, error)
}

// Storyteller runs the narrative pipelines.
type Storyteller interface {
	CreateScene(ctx context.Context, description string) (*pipeline.State, error)
	AddAction(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error)
	EndScene(ctx context.Context, scene, outcomes string) (*pipeline.State, error)
}

// Notifier receives game lifecycle events.
type Notifier interface {
	PublishSceneStarted(ctx context.Context, chatID int64, requestID, description, imageURL string) error
	PublishActionResolved(ctx context.Context, chatID int64, requestID, name, outcome string) error
	PublishSceneEnded(ctx context.Context, chatID int64, requestID, summary string) error
	PublishSceneReset(ctx context.Context, chatID int64, requestID string) error
	PublishRequestFailed(ctx context.Context, chatID int64, requestID, errMsg string) error
}

type session struct {
	scene    *state.Scene
	starting bool
}

// Manager owns every chat's scene. It is safe for concurrent use; remote calls are
// made without holding the lock.
type Manager struct {
	teller   Storyteller
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	chats map[int64]*session
}

// NewManager creates a manager. notifier may be nil.
func NewManager(teller Storyteller, notifier Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		teller:   teller,
		notifier: notifier,
		logger:   logger,
		chats:    make(map[int64]*session),
	}
}

// Handle applies one inbound request. Rejected requests return one of the package
// errors after the requester has been told; pipeline failures are returned as is.
func (m *Manager) Handle(ctx context.Context, chat Chat, req *queue.Request) error {
	switch req.Type {
	case queue.RequestTypeHelp:
		return m.help(ctx, chat, req)
	case queue.RequestTypeStart:
		return m.start(ctx, chat, req)
	case queue.RequestTypeReply:
		return m.reply(ctx, chat, req)
	case queue.RequestTypeEnd:
		return m.end(ctx, chat, req)
	case queue.RequestTypeReset:
		return m.reset(ctx, chat, req)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRequest, req.Type)
	}
}

func (m *Manager) help(ctx context.Context, chat Chat, req *queue.Request) error {
	if err := chat.React(ctx, req.ChatID, req.MessageID, AckReaction); err != nil {
		m.logger.Warn("Failed to react", "chat_id", req.ChatID, "error", err)
	}
	_, err := chat.ReplyText(ctx, req.ChatID, req.MessageID, HelpText)
	return err
}

func (m *Manager) start(ctx context.Context, chat Chat, req *queue.Request) error {
	if req.Text == "" {
		return m.warn(ctx, chat, req, ErrNoDescription, "Missing scene description.")
	}

	m.mu.Lock()
	s := m.session(req.ChatID)
	switch {
	case s.scene != nil:
		m.mu.Unlock()
		return m.warn(ctx, chat, req, ErrSceneActive, "There is already an active scene.")
	case s.starting:
		m.mu.Unlock()
		return m.warn(ctx, chat, req, ErrSceneStarting, "A scene is already being created.")
	}
	s.starting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		s.starting = false
		m.mu.Unlock()
	}()

	m.ack(ctx, chat, req)
	st, err := m.teller.CreateScene(ctx, req.Text)
	if err != nil {
		return m.fail(ctx, chat, req, "Error while creating scene", err)
	}
	if empty(st) {
		return m.warn(ctx, chat, req, ErrEmptyResult, "The scene could not be created. Please try again.")
	}

	messageID, err := m.postScene(ctx, chat, req, st)
	if err != nil {
		return m.fail(ctx, chat, req, "Error while posting scene", err)
	}

	scene := state.NewScene(messageID, st.Refined, st.ImageURL)
	m.mu.Lock()
	s.scene = scene
	m.mu.Unlock()

	m.logger.Info("Scene started",
		"chat_id", req.ChatID,
		"request_id", req.RequestID,
		"message_id", messageID,
		"run_id", st.RunID,
		"has_image", st.ImageURL != "")
	m.notify(req, func(n Notifier) error {
		return n.PublishSceneStarted(ctx, req.ChatID, req.RequestID, st.Refined, st.ImageURL)
	})
	return nil
}

// postScene posts the scene with its illustration, or as text when there is none or
// the platform rejects the image.
func (m *Manager) postScene(ctx context.Context, chat Chat, req *queue.Request, st *pipeline.State) (int, error) {
	if st.ImageURL != "" {
		id, err := chat.ReplyPhoto(ctx, req.ChatID, req.MessageID, st.ImageURL, st.Refined)
		if err == nil {
			return id, nil
		}
		m.logger.Warn("Failed to post scene image, posting text only", "chat_id", req.ChatID, "error", err)
	}
	return chat.ReplyText(ctx, req.ChatID, req.MessageID, st.Refined)
}

func (m *Manager) reply(ctx context.Context, chat Chat, req *queue.Request) error {
	m.mu.Lock()
	s := m.session(req.ChatID)
	scene := s.scene
	if scene == nil || req.ReplyToID != scene.MessageID {
		m.mu.Unlock()
		return ErrNotSceneReply
	}
	if _, err := scene.Reserve(req.UserID, req.UserName, req.Text); err != nil {
		m.mu.Unlock()
		return m.warn(ctx, chat, req, ErrAlreadyReplied, "You already replied to this scene.")
	}
	description, outcomes := scene.Description, scene.Outcomes()
	m.mu.Unlock()

	m.ack(ctx, chat, req)
	st, err := m.teller.AddAction(ctx, description, outcomes, req.UserName, req.Text)
	if err != nil {
		m.mu.Lock()
		scene.Release(req.UserID)
		m.mu.Unlock()
		return m.fail(ctx, chat, req, "Error while processing action", err)
	}
	if empty(st) {
		m.mu.Lock()
		scene.Release(req.UserID)
		m.mu.Unlock()
		return m.warn(ctx, chat, req, ErrEmptyResult, "Your action could not be resolved. Please try again.")
	}

	m.mu.Lock()
	scene.Fill(req.UserID, st.Refined)
	replies := scene.ReplyCount()
	m.mu.Unlock()

	if _, err := chat.ReplyText(ctx, req.ChatID, req.MessageID, st.Refined); err != nil {
		return fmt.Errorf("failed to post outcome: %w", err)
	}
	m.notify(req, func(n Notifier) error {
		return n.PublishActionResolved(ctx, req.ChatID, req.RequestID, req.UserName, st.Refined)
	})

	members, err := chat.MemberCount(ctx, req.ChatID)
	if err != nil {
		m.logger.Warn("Failed to get member count", "chat_id", req.ChatID, "error", err)
		return nil
	}
	m.mu.Lock()
	majority := s.scene == scene && scene.HasMajority(members)
	m.mu.Unlock()

	m.logger.Info("Action resolved",
		"chat_id", req.ChatID,
		"user_id", req.UserID,
		"members", members,
		"replies", replies,
		"majority", majority)
	if majority {
		return m.end(ctx, chat, req)
	}
	return nil
}

func (m *Manager) end(ctx context.Context, chat Chat, req *queue.Request) error {
	m.mu.Lock()
	s := m.session(req.ChatID)
	scene := s.scene
	if scene == nil {
		m.mu.Unlock()
		return m.warn(ctx, chat, req, ErrNoScene, "No active scene to end.")
	}
	description, outcomes := scene.Description, scene.Outcomes()
	m.mu.Unlock()

	m.ack(ctx, chat, req)
	st, err := m.teller.EndScene(ctx, description, outcomes)
	if err != nil {
		return m.fail(ctx, chat, req, "Error while completing scene", err)
	}
	if empty(st) {
		return m.warn(ctx, chat, req, ErrEmptyResult, "The scene could not be completed. Please try again.")
	}

	if _, err := chat.ReplyText(ctx, req.ChatID, scene.MessageID, st.Refined); err != nil {
		return fmt.Errorf("failed to post summary: %w", err)
	}

	m.mu.Lock()
	if s.scene == scene {
		s.scene = nil
	}
	m.mu.Unlock()

	m.logger.Info("Scene ended", "chat_id", req.ChatID, "request_id", req.RequestID, "run_id", st.RunID)
	m.notify(req, func(n Notifier) error {
		return n.PublishSceneEnded(ctx, req.ChatID, req.RequestID, st.Refined)
	})
	return nil
}

func (m *Manager) reset(ctx context.Context, chat Chat, req *queue.Request) error {
	if err := chat.React(ctx, req.ChatID, req.MessageID, AckReaction); err != nil {
		m.logger.Warn("Failed to react", "chat_id", req.ChatID, "error", err)
	}

	m.mu.Lock()
	if s, ok := m.chats[req.ChatID]; ok {
		s.scene = nil
	}
	m.mu.Unlock()

	m.logger.Info("Scene reset", "chat_id", req.ChatID, "request_id", req.RequestID)
	m.notify(req, func(n Notifier) error {
		return n.PublishSceneReset(ctx, req.ChatID, req.RequestID)
	})
	return nil
}

func empty(st *pipeline.State) bool {
	return st == nil || st.Refined == ""
}

// session must be called with mu held.
func (m *Manager) session(chatID int64) *session {
	s, ok := m.chats[chatID]
	if !ok {
		s = &session{}
		m.chats[chatID] = s
	}
	return s
}

func (m *Manager) ack(ctx context.Context, chat Chat, req *queue.Request) {
	if err := chat.React(ctx, req.ChatID, req.MessageID, AckReaction); err != nil {
		m.logger.Warn("Failed to react", "chat_id", req.ChatID, "error", err)
	}
	if err := chat.SendTyping(ctx, req.ChatID); err != nil {
		m.logger.Warn("Failed to send typing indicator", "chat_id", req.ChatID, "error", err)
	}
}

func (m *Manager) warn(ctx context.Context, chat Chat, req *queue.Request, cause error, text string) error {
	m.logger.Warn("Request rejected", "chat_id", req.ChatID, "type", req.Type, "reason", cause)
	if _, err := chat.ReplyText(ctx, req.ChatID, req.MessageID, WarningPrefix+text); err != nil {
		m.logger.Warn("Failed to post warning", "chat_id", req.ChatID, "error", err)
	}
	return cause
}

func (m *Manager) fail(ctx context.Context, chat Chat, req *queue.Request, what string, cause error) error {
	msg := fmt.Sprintf("%s: %v", what, cause)
	m.logger.Error(what, "chat_id", req.ChatID, "request_id", req.RequestID, "error", cause)
	if _, err := chat.ReplyText(ctx, req.ChatID, req.MessageID, ErrorPrefix+msg); err != nil {
		m.logger.Warn("Failed to post error", "chat_id", req.ChatID, "error", err)
	}
	m.notify(req, func(n Notifier) error {
		return n.PublishRequestFailed(ctx, req.ChatID, req.RequestID, msg)
	})
	return cause
}

func (m *Manager) notify(req *queue.Request, publish func(Notifier) error) {
	if m.notifier == nil {
		return
	}
	if err := publish(m.notifier); err != nil {
		m.logger.Warn("Failed to publish event", "chat_id", req.ChatID, "request_id", req.RequestID, "error", err)
	}
}

// SceneView is a read-only copy of a chat's scene.
type SceneView struct {
	ChatID      int64          `json:"chat_id"`
	MessageID   int            `json:"message_id"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Actions     []state.Action `json:"actions"`
}

// Scene returns a copy of the chat's active scene.
func (m *Manager) Scene(chatID int64) (SceneView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.chats[chatID]
	if !ok || s.scene == nil {
		return SceneView{}, false
	}
	return view(chatID, s.scene), true
}

// Scenes returns copies of every active scene ordered by chat id.
func (m *Manager) Scenes() []SceneView {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]SceneView, 0, len(m.chats))
	for chatID, s := range m.chats {
		if s.scene != nil {
			views = append(views, view(chatID, s.scene))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ChatID < views[j].ChatID })
	return views
}

func view(chatID int64, scene *state.Scene) SceneView {
	return SceneView{
		ChatID:      chatID,
		MessageID:   scene.MessageID,
		Description: scene.Description,
		ImageURL:    scene.ImageURL,
		CreatedAt:   scene.CreatedAt,
		Actions:     scene.Actions(),
	}
}
