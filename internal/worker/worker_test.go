package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	handled  []string
	inFlight map[int64]int
	overlap  bool
	delay    time.Duration
	err      error
	panicOn  string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{inFlight: make(map[int64]int)}
}

func (h *recordingHandler) Handle(ctx context.Context, chat game.Chat, req *queue.Request) error {
	h.mu.Lock()
	h.inFlight[req.ChatID]++
	if h.inFlight[req.ChatID] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	if req.Text == h.panicOn && h.panicOn != "" {
		h.mu.Lock()
		h.inFlight[req.ChatID]--
		h.mu.Unlock()
		panic("boom")
	}

	time.Sleep(h.delay)

	h.mu.Lock()
	h.inFlight[req.ChatID]--
	h.handled = append(h.handled, req.Text)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) snapshot() ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.handled...), h.overlap
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(chatID int64, text string) *queue.Request {
	r := queue.NewRequest(queue.RequestTypeReply, chatID, 1)
	r.Text = text
	return r
}

func TestDispatcher_SequentialPerChat(t *testing.T) {
	h := newRecordingHandler()
	h.delay = 2 * time.Millisecond
	d := New(h, nil, testLogger(), "test")
	defer d.Stop()

	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, d.Enqueue(request(1, text)))
	}

	require.Eventually(t, func() bool {
		handled, _ := h.snapshot()
		return len(handled) == 4
	}, time.Second, time.Millisecond)

	handled, overlap := h.snapshot()
	assert.Equal(t, []string{"a", "b", "c", "d"}, handled)
	assert.False(t, overlap, "one request at a time per chat")
}

func TestDispatcher_ChatsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan int64, 2)
	h := handlerFunc(func(ctx context.Context, chat game.Chat, req *queue.Request) error {
		started <- req.ChatID
		<-release
		return nil
	})
	d := New(h, nil, testLogger(), "")
	defer d.Stop()

	require.NoError(t, d.Enqueue(request(1, "x")))
	require.NoError(t, d.Enqueue(request(2, "y")))

	got := map[int64]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-started:
			got[id] = true
		case <-time.After(time.Second):
			t.Fatal("second chat blocked behind the first")
		}
	}
	close(release)
	assert.Equal(t, map[int64]bool{1: true, 2: true}, got)
	assert.Equal(t, 2, d.Lanes())
}

func TestDispatcher_ErrorsAndPanicsDoNotStopLane(t *testing.T) {
	h := newRecordingHandler()
	h.err = errors.New("pipeline failed")
	h.panicOn = "explode"
	d := New(h, nil, testLogger(), "test")
	defer d.Stop()

	require.NoError(t, d.Enqueue(request(1, "first")))
	require.NoError(t, d.Enqueue(request(1, "explode")))
	require.NoError(t, d.Enqueue(request(1, "last")))

	require.Eventually(t, func() bool {
		handled, _ := h.snapshot()
		return len(handled) == 2
	}, time.Second, time.Millisecond)
	handled, _ := h.snapshot()
	assert.Equal(t, []string{"first", "last"}, handled)
}

func TestDispatcher_LaneFull(t *testing.T) {
	block := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, chat game.Chat, req *queue.Request) error {
		<-block
		return nil
	})
	d := New(h, nil, testLogger(), "test")
	d.laneSize = 1
	defer d.Stop()
	defer close(block)

	require.NoError(t, d.Enqueue(request(1, "in flight")))
	require.Eventually(t, func() bool {
		// The first request has left the channel once the lane is free for one more.
		return d.Enqueue(request(1, "pending")) == nil
	}, time.Second, time.Millisecond)

	err := d.Enqueue(request(1, "overflow"))
	assert.ErrorIs(t, err, ErrLaneFull)
}

func TestDispatcher_IdleLaneExits(t *testing.T) {
	h := newRecordingHandler()
	d := New(h, nil, testLogger(), "test")
	d.idleTimeout = 5 * time.Millisecond
	defer d.Stop()

	require.NoError(t, d.Enqueue(request(1, "a")))
	require.Eventually(t, func() bool { return d.Lanes() == 0 }, time.Second, time.Millisecond)

	// A new lane is started for the next request.
	require.NoError(t, d.Enqueue(request(1, "b")))
	require.Eventually(t, func() bool {
		handled, _ := h.snapshot()
		return len(handled) == 2
	}, time.Second, time.Millisecond)
}

func TestDispatcher_StopCancelsAndRejects(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, chat game.Chat, req *queue.Request) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	d := New(h, nil, testLogger(), "test")

	require.NoError(t, d.Enqueue(request(1, "long")))
	<-started
	d.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("in-flight request was not cancelled")
	}
	assert.ErrorIs(t, d.Enqueue(request(1, "late")), ErrStopped)
	assert.Equal(t, 0, d.Lanes())
}

type handlerFunc func(ctx context.Context, chat game.Chat, req *queue.Request) error

func (f handlerFunc) Handle(ctx context.Context, chat game.Chat, req *queue.Request) error {
	return f(ctx, chat, req)
}
