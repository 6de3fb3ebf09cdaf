package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jwebster45206/vignette/pkg/pipeline"
	"github.com/jwebster45206/vignette/pkg/queue"
)

const (
	chatID             int64 = -100
	commandMessageID         = 1001
	sceneMessageID           = 1002
	actionMessageID          = 1004
	userID             int64 = 2001
	userName                 = "First"
	sceneDescription         = "Expanded scene"
	sceneImageURL            = "https://example.com/image.png"
	actionOutcome            = "Action outcome"
	sceneSummary             = "Scene summary"
	numMembers               = 5
	initialDescription       = "Initial scene"
)

type sentMessage struct {
	ReplyTo  int
	Text     string
	PhotoURL string
}

func (m sentMessage) IsWarning() bool { return strings.HasPrefix(m.Text, WarningPrefix) }
func (m sentMessage) IsError() bool   { return strings.HasPrefix(m.Text, ErrorPrefix) }

// recordingChat hands out message ids from sceneMessageID upward.
type recordingChat struct {
	mu        sync.Mutex
	nextID    int
	Messages  []sentMessage
	Reactions []int
	Typing    int
	Members   int

	ReplyPhotoErr  error
	MemberCountErr error
}

func newRecordingChat() *recordingChat {
	return &recordingChat{nextID: sceneMessageID, Members: numMembers}
}

func (c *recordingChat) ReplyText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, sentMessage{ReplyTo: replyTo, Text: text})
	id := c.nextID
	c.nextID++
	return id, nil
}

func (c *recordingChat) ReplyPhoto(ctx context.Context, chatID int64, replyTo int, photoURL, caption string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReplyPhotoErr != nil {
		return 0, c.ReplyPhotoErr
	}
	c.Messages = append(c.Messages, sentMessage{ReplyTo: replyTo, Text: caption, PhotoURL: photoURL})
	id := c.nextID
	c.nextID++
	return id, nil
}

func (c *recordingChat) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reactions = append(c.Reactions, messageID)
	return nil
}

func (c *recordingChat) SendTyping(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Typing++
	return nil
}

func (c *recordingChat) MemberCount(ctx context.Context, chatID int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Members, c.MemberCountErr
}

func (c *recordingChat) sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.Messages...)
}

func (c *recordingChat) last() sentMessage {
	msgs := c.sent()
	return msgs[len(msgs)-1]
}

type stubTeller struct {
	mu sync.Mutex

	CreateSceneFunc func(ctx context.Context, description string) (*pipeline.State, error)
	AddActionFunc   func(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error)
	EndSceneFunc    func(ctx context.Context, scene, outcomes string) (*pipeline.State, error)

	CreateCalls []string
	ActionCalls [][4]string
	EndCalls    [][2]string
}

func newStubTeller() *stubTeller {
	return &stubTeller{
		CreateSceneFunc: func(ctx context.Context, description string) (*pipeline.State, error) {
			return &pipeline.State{Refined: sceneDescription, ImageURL: sceneImageURL}, nil
		},
		AddActionFunc: func(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error) {
			return &pipeline.State{Refined: actionOutcome}, nil
		},
		EndSceneFunc: func(ctx context.Context, scene, outcomes string) (*pipeline.State, error) {
			return &pipeline.State{Refined: sceneSummary}, nil
		},
	}
}

func (s *stubTeller) CreateScene(ctx context.Context, description string) (*pipeline.State, error) {
	s.mu.Lock()
	s.CreateCalls = append(s.CreateCalls, description)
	fn := s.CreateSceneFunc
	s.mu.Unlock()
	return fn(ctx, description)
}

func (s *stubTeller) AddAction(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error) {
	s.mu.Lock()
	s.ActionCalls = append(s.ActionCalls, [4]string{scene, outcomes, name, action})
	fn := s.AddActionFunc
	s.mu.Unlock()
	return fn(ctx, scene, outcomes, name, action)
}

func (s *stubTeller) EndScene(ctx context.Context, scene, outcomes string) (*pipeline.State, error) {
	s.mu.Lock()
	s.EndCalls = append(s.EndCalls, [2]string{scene, outcomes})
	fn := s.EndSceneFunc
	s.mu.Unlock()
	return fn(ctx, scene, outcomes)
}

func (s *stubTeller) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CreateCalls), len(s.ActionCalls), len(s.EndCalls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	Events []string
	Err    error
}

func (n *recordingNotifier) record(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
	return n.Err
}

func (n *recordingNotifier) PublishSceneStarted(ctx context.Context, chatID int64, requestID, description, imageURL string) error {
	return n.record("scene.started")
}

func (n *recordingNotifier) PublishActionResolved(ctx context.Context, chatID int64, requestID, name, outcome string) error {
	return n.record("action.resolved")
}

func (n *recordingNotifier) PublishSceneEnded(ctx context.Context, chatID int64, requestID, summary string) error {
	return n.record("scene.ended")
}

func (n *recordingNotifier) PublishSceneReset(ctx context.Context, chatID int64, requestID string) error {
	return n.record("scene.reset")
}

func (n *recordingNotifier) PublishRequestFailed(ctx context.Context, chatID int64, requestID, errMsg string) error {
	return n.record("request.failed")
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Events...)
}

var errAI = errors.New("model unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func command(t queue.RequestType, text string) *queue.Request {
	r := queue.NewRequest(t, chatID, commandMessageID)
	r.UserID = userID
	r.UserName = userName
	r.Text = text
	return r
}

func replyFrom(uid int64, name string) *queue.Request {
	r := queue.NewRequest(queue.RequestTypeReply, chatID, actionMessageID)
	r.ReplyToID = sceneMessageID
	r.UserID = uid
	r.UserName = name
	r.Text = "Action intent"
	return r
}
