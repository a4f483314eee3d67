package observability

import (
	"context"
	"slices"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
)

// Fanout delivers each event to every observer in order.
type Fanout []ports.Observer

func (f Fanout) OnEvent(ctx context.Context, ev domain.Event) {
	for _, o := range f {
		if o != nil {
			o.OnEvent(ctx, ev)
		}
	}
}

// Filter forwards only events of the given types to next.
func Filter(next ports.Observer, types ...domain.EventType) ports.Observer {
	return ports.ObserverFunc(func(ctx context.Context, ev domain.Event) {
		if slices.Contains(types, ev.Type) {
			next.OnEvent(ctx, ev)
		}
	})
}

// ForRun forwards only events of one run to next.
func ForRun(runID string, next ports.Observer) ports.Observer {
	return ports.ObserverFunc(func(ctx context.Context, ev domain.Event) {
		if ev.RunID == runID {
			next.OnEvent(ctx, ev)
		}
	})
}
