package observability

import (
	"context"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Recorder keeps every event in memory. Handy for tests and for the
// "run --once" CLI mode.
type Recorder struct {
	mu      sync.Mutex
	events  []domain.Event
	changed chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{changed: make(chan struct{})}
}

func (r *Recorder) OnEvent(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Select returns the recorded events matching match.
func (r *Recorder) Select(match func(domain.Event) bool) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// WaitFor blocks until an event matching match is recorded or ctx ends.
func (r *Recorder) WaitFor(ctx context.Context, match func(domain.Event) bool) (domain.Event, error) {
	seen := 0
	for {
		r.mu.Lock()
		pending := r.events[seen:]
		changed := r.changed
		seen = len(r.events)
		r.mu.Unlock()

		for _, ev := range pending {
			if match(ev) {
				return ev, nil
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		}
	}
}
