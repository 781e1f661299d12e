package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/senseirm/internal/events"
)

type recordingHandler struct {
	mu     sync.Mutex
	seen   []events.Event
	block  chan struct{}
	result error
}

func (h *recordingHandler) EventTypes() []events.EventType {
	return []events.EventType{events.EventTaskAssigned}
}

func (h *recordingHandler) Handle(_ context.Context, e events.Event) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e)
	return h.result
}

func TestNotificationWorker_DeliversPublishedEvents(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	h := &recordingHandler{result: errors.New("logged, not fatal")}
	w := StartNotificationWorker(context.Background(), d, h, nil)

	for i := 0; i < 5; i++ {
		if err := d.Publish(context.Background(), events.New(events.EventTaskAssigned, "t", "u", nil)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	// Events of other types are not subscribed.
	_ = d.Publish(context.Background(), events.New(events.EventCampaignSent, "c", "u", nil))

	w.Stop()
	if len(h.seen) != 5 {
		t.Fatalf("expected 5 handled events, got %d", len(h.seen))
	}
}

func TestNotificationWorker_RejectsAfterStop(t *testing.T) {
	w := NewNotificationWorker(&recordingHandler{}, nil, 1)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
	if err := w.Enqueue(context.Background(), events.Event{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestNotificationWorker_DropsWhenFull(t *testing.T) {
	h := &recordingHandler{block: make(chan struct{})}
	w := NewNotificationWorker(h, nil, 1)

	var dropped bool
	for i := 0; i < channelBuffer+1; i++ {
		if err := w.Enqueue(context.Background(), events.Event{}); errors.Is(err, ErrQueueFull) {
			dropped = true
		}
	}
	if !dropped {
		t.Fatalf("expected a dropped event once the buffer is full")
	}
	close(h.block)
	w.Start(context.Background())
	w.Stop()
	if len(h.seen) != channelBuffer {
		t.Fatalf("expected %d handled events, got %d", channelBuffer, len(h.seen))
	}
}
