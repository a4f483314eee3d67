package nodes

import (
	"context"
	"sync"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

type timerSettings struct {
	Interval  float64 `mapstructure:"interval"`
	Immediate bool    `mapstructure:"immediate"`
	Payload   any     `mapstructure:"payload"`
}

// Timer is an independent event source that ticks on a fixed interval.
type Timer struct {
	base
	cfg   timerSettings
	ticks int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (t *Timer) Configure(settings map[string]any) error {
	return schema.Decode(settings, &t.cfg)
}

func (t *Timer) Setup(_ context.Context, rt ports.Runtime) error {
	t.rt = rt
	ctx, cancel := context.WithCancel(rt.Context())
	t.cancel = cancel
	interval := time.Duration(t.cfg.Interval * float64(time.Second))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if t.cfg.Immediate {
			rt.Trigger(domain.SourceTimer, nil)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rt.Trigger(domain.SourceTimer, nil)
			}
		}
	}()
	return nil
}

func (t *Timer) OnEvent(_ context.Context, ev domain.NodeEvent) (ports.Outputs, error) {
	t.ticks++
	out := ports.Outputs{
		"tick":      t.ticks,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	switch {
	case ev.Source == domain.SourceInject && ev.Payload != nil:
		out["payload"] = ev.Payload
	case t.cfg.Payload != nil:
		out["payload"] = t.cfg.Payload
	}
	return out, nil
}

func (t *Timer) Teardown(context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	return nil
}
