package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

// Event is a message kept by a Recorder.
type Event struct {
	RoutingKey string
	Payload    interface{}
}

// Recorder keeps published events in memory; it stands in for the broker when none is configured.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
	err    error
}

var _ core.EventPublisher = (*Recorder)(nil)

// NewRecorder keeps at most limit events (unbounded when limit <= 0), dropping the oldest.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, Event{RoutingKey: routingKey, Payload: payload})
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// FailWith makes the following Publish calls fail with err (nil restores them).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Reset forgets the recorded events and restores Publish.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.err = nil
	r.mu.Unlock()
}
