package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/events"
)

const (
	defaultWorkers = 2
	channelBuffer  = 128
)

// ErrQueueFull is returned when an event is dropped because the worker is saturated.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned for events published after Stop.
var ErrStopped = errors.New("notification worker stopped")

// EventHandler processes notifications off the request path.
type EventHandler interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification side effects (mail, logs) off the
// publishing goroutine onto a small pool of workers.
type NotificationWorker struct {
	handler EventHandler
	logger  *zap.Logger
	workers int
	queue   chan events.Event

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker creates a worker. numWorkers <= 0 selects the default.
func NewNotificationWorker(handler EventHandler, logger *zap.Logger, numWorkers int) *NotificationWorker {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler: handler,
		logger:  logger,
		workers: numWorkers,
		queue:   make(chan events.Event, channelBuffer),
	}
}

// StartNotificationWorker subscribes the handler to dispatcher and launches workers.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, handler EventHandler, logger *zap.Logger) *NotificationWorker {
	if dispatcher == nil || handler == nil {
		return nil
	}
	w := NewNotificationWorker(handler, logger, defaultWorkers)
	for _, eventType := range handler.EventTypes() {
		dispatcher.Subscribe(eventType, w.Enqueue)
	}
	w.Start(ctx)
	return w
}

// Start launches the worker goroutines.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Enqueue hands an event to the pool without blocking the publisher.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("dropping notification", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
		return ErrQueueFull
	}
}

// Stop rejects new events and waits until queued ones are handled.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.handler.Handle(ctx, event); err != nil {
			w.logger.Error("notification failed",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("subject_id", event.SubjectID),
				zap.Int("worker_id", id))
		}
	}
}
