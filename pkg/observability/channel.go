package observability

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Channel forwards events to a buffered channel. When the reader falls
// behind, events are dropped and counted rather than stalling the run.
type Channel struct {
	mu      sync.RWMutex
	ch      chan domain.Event
	closed  bool
	dropped atomic.Int64
}

// NewChannel returns a sink with the given buffer size.
func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{ch: make(chan domain.Event, buffer)}
}

// Events is the receive side. It is closed by Close.
func (c *Channel) Events() <-chan domain.Event { return c.ch }

// Dropped reports how many events did not fit the buffer.
func (c *Channel) Dropped() int64 { return c.dropped.Load() }

func (c *Channel) OnEvent(_ context.Context, ev domain.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
	}
}

// Close closes the events channel. Later events are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
