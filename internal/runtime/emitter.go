package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/internal/mailbox"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
)

// emitter delivers a run's events to its observers one at a time, in the
// order they were emitted, without ever blocking the emitting node.
type emitter struct {
	box       *mailbox.Mailbox[domain.Event]
	observers []ports.Observer
	logger    *slog.Logger
	done      chan struct{}
}

func newEmitter(observers []ports.Observer, logger *slog.Logger) *emitter {
	em := &emitter{
		box:       mailbox.New[domain.Event](),
		observers: observers,
		logger:    logger,
		done:      make(chan struct{}),
	}
	go em.loop()
	return em
}

func (em *emitter) emit(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if !em.box.Push(ev) {
		em.logger.Debug("event dropped after close", "type", ev.Type, "node_id", ev.NodeID)
	}
}

func (em *emitter) loop() {
	defer close(em.done)
	ctx := context.Background()
	for {
		ev, err := em.box.Pop(ctx)
		if err != nil {
			return
		}
		for _, o := range em.observers {
			em.deliver(ctx, o, ev)
		}
	}
}

func (em *emitter) deliver(ctx context.Context, o ports.Observer, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			em.logger.Error("observer panic", "type", ev.Type, "error", fmt.Errorf("%v", r))
		}
	}()
	o.OnEvent(ctx, ev)
}

// close flushes queued events and waits for delivery or ctx expiry.
func (em *emitter) close(ctx context.Context) error {
	em.box.Close()
	select {
	case <-em.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush observer events: %w", ctx.Err())
	}
}
