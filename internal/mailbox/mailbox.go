// Package mailbox provides an unbounded FIFO queue with a blocking Pop.
//
// Producers never block, which lets the event bus and the observer emitter
// accept work from any goroutine (including from inside a consumer) without
// risking deadlock.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop once the mailbox is closed and drained.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue. The zero value is not usable; call New.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	// ready holds one token while items are pending or the mailbox is closed.
	ready chan struct{}
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It reports false when the mailbox is already closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()
	m.signal()
	return true
}

// Pop removes and returns the oldest item, blocking until one is available,
// ctx is done, or the mailbox is closed and empty.
func (m *Mailbox[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		m.mu.Lock()
		if m.head < len(m.items) {
			v := m.items[m.head]
			m.items[m.head] = zero
			m.head++
			if m.head == len(m.items) {
				m.items = m.items[:0]
				m.head = 0
			}
			more := m.head < len(m.items) || m.closed
			m.mu.Unlock()
			if more {
				m.signal()
			}
			return v, nil
		}
		if m.closed {
			m.mu.Unlock()
			m.signal()
			return zero, ErrClosed
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop returns the oldest item without blocking.
func (m *Mailbox[T]) TryPop() (T, bool) {
	var zero T
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.head >= len(m.items) {
		return zero, false
	}
	v := m.items[m.head]
	m.items[m.head] = zero
	m.head++
	if m.head == len(m.items) {
		m.items = m.items[:0]
		m.head = 0
	}
	return v, true
}

// Close stops accepting items. Items already queued can still be popped.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items) - m.head
}

func (m *Mailbox[T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
