// Package bus is the in-process publish/subscribe channel nodes use to signal
// each other outside of port wiring.
//
// Publishing never waits for handlers. Every subscription owns an unbounded
// mailbox drained by its own goroutine, so a subscriber receives the messages
// of one topic in publish order while slow subscribers never stall the
// publisher or each other. Nothing is ordered across topics.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oboroge0/AITuberFlow-sub001/internal/mailbox"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Message is one published payload as seen by a handler.
type Message struct {
	Topic   string
	Payload any
	// Seq increases by one per publish on the topic.
	Seq       uint64
	Published time.Time
}

// Handler processes one message. Returned errors and panics are reported to
// the bus error hook and never reach the publisher.
type Handler func(ctx context.Context, msg Message) error

// ErrorHook receives handler failures.
type ErrorHook func(sub *Subscription, msg Message, err error)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures when no hook is set.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// WithErrorHook routes handler failures to fn.
func WithErrorHook(fn ErrorHook) Option {
	return func(b *Bus) {
		b.onError = fn
	}
}

// Bus is a topic-based publish/subscribe hub. It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger  *slog.Logger
	onError ErrorHook
}

type topic struct {
	mu   sync.Mutex
	seq  uint64
	subs []*Subscription
}

// New creates an open bus.
func New(opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		topics: make(map[string]*topic),
		ctx:    ctx,
		cancel: cancel,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id      string
	topic   string
	handler Handler
	box     *mailbox.Mailbox[Message]
	stopped atomic.Bool
	done    chan struct{}
}

func (s *Subscription) ID() string    { return s.id }
func (s *Subscription) Topic() string { return s.topic }

// Pending returns the number of messages queued but not yet handled.
func (s *Subscription) Pending() int { return s.box.Len() }

// Publish fans payload out to the current subscribers of name and to wildcard
// subscribers. It returns immediately; with no subscribers it is a no-op.
func (b *Bus) Publish(name string, payload any) error {
	if name == "" || name == Wildcard {
		return fmt.Errorf("publish: invalid topic %q", name)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	t := b.topics[name]
	wild := b.topics[Wildcard]
	b.mu.RUnlock()

	if t == nil && wild == nil {
		return nil
	}
	if t == nil {
		// Wildcard-only topics still need a sequence.
		t = b.topicFor(name)
	}

	// The topic lock serialises enqueueing so every subscriber observes the
	// same per-topic order.
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	msg := Message{Topic: name, Payload: payload, Seq: t.seq, Published: time.Now()}
	for _, s := range t.subs {
		s.box.Push(msg)
	}
	if wild != nil {
		wild.mu.Lock()
		subs := wild.subs
		wild.mu.Unlock()
		for _, s := range subs {
			s.box.Push(msg)
		}
	}
	return nil
}

func (b *Bus) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{}
		b.topics[name] = t
	}
	return t
}

// Subscribe registers handler for name (or Wildcard). Messages published
// before Subscribe returns are not delivered.
func (b *Bus) Subscribe(name string, handler Handler) (*Subscription, error) {
	if name == "" {
		return nil, fmt.Errorf("subscribe: empty topic")
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %q: nil handler", name)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	t, ok := b.topics[name]
	if !ok {
		t = &topic{}
		b.topics[name] = t
	}
	b.wg.Add(1)
	b.mu.Unlock()

	s := &Subscription{
		id:      uuid.NewString(),
		topic:   name,
		handler: handler,
		box:     mailbox.New[Message](),
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	// Copy on write: publishers iterate a snapshot without holding this lock.
	next := make([]*Subscription, len(t.subs), len(t.subs)+1)
	copy(next, t.subs)
	t.subs = append(next, s)
	t.mu.Unlock()

	go b.deliver(s)
	return s, nil
}

// Unsubscribe stops delivery to s. Messages still queued for s are dropped;
// a handler call already in progress is allowed to finish.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil || s.stopped.Swap(true) {
		return
	}
	b.mu.RLock()
	t := b.topics[s.topic]
	b.mu.RUnlock()
	if t != nil {
		t.mu.Lock()
		next := make([]*Subscription, 0, len(t.subs))
		for _, other := range t.subs {
			if other != s {
				next = append(next, other)
			}
		}
		t.subs = next
		t.mu.Unlock()
	}
	s.box.Close()
}

func (b *Bus) deliver(s *Subscription) {
	defer b.wg.Done()
	defer close(s.done)
	for {
		msg, err := s.box.Pop(b.ctx)
		if err != nil {
			return
		}
		if s.stopped.Load() {
			continue
		}
		b.invoke(s, msg)
	}
}

func (b *Bus) invoke(s *Subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.report(s, msg, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := s.handler(b.ctx, msg); err != nil {
		b.report(s, msg, err)
	}
}

func (b *Bus) report(s *Subscription, msg Message, err error) {
	if b.onError != nil {
		b.onError(s, msg, err)
		return
	}
	b.logger.Warn("bus handler failed", "topic", msg.Topic, "subscription", s.id, "error", err)
}

// Close stops every subscription and waits for running handlers to return or
// for ctx to expire. Queued messages are dropped.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*Subscription
	for _, t := range b.topics {
		t.mu.Lock()
		subs = append(subs, t.subs...)
		t.mu.Unlock()
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.stopped.Store(true)
		s.box.Close()
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close bus: %w", ctx.Err())
	}
}
