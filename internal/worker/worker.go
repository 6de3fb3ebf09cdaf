package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/internal/logger"
	"github.com/jwebster45206/vignette/pkg/queue"
)

const (
	defaultLaneSize    = 32
	defaultIdleTimeout = 5 * time.Minute
)

var (
	ErrStopped  = errors.New("dispatcher stopped")
	ErrLaneFull = errors.New("too many pending requests for chat")
)

// Handler applies one request. *game.Manager implements it.
type Handler interface {
	Handle(ctx context.Context, chat game.Chat, req *queue.Request) error
}

// Dispatcher runs each chat's requests one at a time in arrival order, and different
// chats concurrently. A chat's lane goroutine exits after it has been idle for a while.
type Dispatcher struct {
	id      string
	handler Handler
	chat    game.Chat
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	laneSize    int
	idleTimeout time.Duration

	mu      sync.Mutex
	lanes   map[int64]chan *queue.Request
	stopped bool
	wg      sync.WaitGroup
}

// New creates a dispatcher that sends every reply through chat.
func New(handler Handler, chat game.Chat, log *slog.Logger, workerID string) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Dispatcher{
		id:          workerID,
		handler:     handler,
		chat:        chat,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		laneSize:    defaultLaneSize,
		idleTimeout: defaultIdleTimeout,
		lanes:       make(map[int64]chan *queue.Request),
	}
}

// Enqueue schedules a request behind the chat's pending requests.
func (d *Dispatcher) Enqueue(req *queue.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	lane, ok := d.lanes[req.ChatID]
	if !ok {
		lane = make(chan *queue.Request, d.laneSize)
		d.lanes[req.ChatID] = lane
		d.wg.Add(1)
		go d.run(req.ChatID, lane)
	}

	select {
	case lane <- req:
		d.log.Debug("Request queued",
			"worker_id", d.id,
			"request_id", req.RequestID,
			"chat_id", req.ChatID,
			"type", req.Type,
			"pending", len(lane))
		return nil
	default:
		return fmt.Errorf("%w %d", ErrLaneFull, req.ChatID)
	}
}

// Stop cancels in-flight requests and waits for every lane to exit.
func (d *Dispatcher) Stop() {
	d.log.Info("Worker stop requested", "worker_id", d.id)
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// Lanes returns the number of chats with a running lane.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

func (d *Dispatcher) run(chatID int64, lane chan *queue.Request) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.removeLane(chatID)
			return
		case req := <-lane:
			d.processRequest(req)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)
		case <-idle.C:
			// Enqueue sends under the lock, so an empty lane here stays empty.
			d.mu.Lock()
			if len(lane) == 0 {
				delete(d.lanes, chatID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.idleTimeout)
		}
	}
}

func (d *Dispatcher) removeLane(chatID int64) {
	d.mu.Lock()
	delete(d.lanes, chatID)
	d.mu.Unlock()
}

// processRequest applies a single request and logs its outcome
func (d *Dispatcher) processRequest(req *queue.Request) {
	log := logger.WithChat(d.log, req.ChatID, req.RequestID).With("worker_id", d.id, "type", req.Type, "command", req.IsCommand())
	log.Info("Processing request", "queued_ms", time.Since(req.EnqueuedAt).Milliseconds())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Request handler panicked", "panic", r)
		}
	}()

	err := d.handler.Handle(d.ctx, d.chat, req)
	duration := time.Since(start).Milliseconds()
	switch {
	case err == nil:
		log.Info("Request processed successfully", "duration_ms", duration)
	case errors.Is(err, game.ErrNotSceneReply):
		log.Debug("Ignoring message", "reason", err)
	case game.IsUserError(err):
		log.Info("Request rejected", "reason", err, "duration_ms", duration)
	default:
		log.Error("Request failed", "error", err, "duration_ms", duration)
	}
}
