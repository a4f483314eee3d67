package ports

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Observer receives every side-visible event of a run. Calls for one run are
// made sequentially, in emission order, from a goroutine owned by the run.
type Observer interface {
	OnEvent(ctx context.Context, ev domain.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev domain.Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev domain.Event) { f(ctx, ev) }
