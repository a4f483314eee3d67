package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/bus"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// nodeRuntime implements ports.Runtime for one cell.
type nodeRuntime struct {
	c *cell
}

func (rt *nodeRuntime) RunID() string            { return rt.c.run.id }
func (rt *nodeRuntime) NodeID() string           { return rt.c.id() }
func (rt *nodeRuntime) Context() context.Context { return rt.c.run.ctx }
func (rt *nodeRuntime) Logger() *slog.Logger     { return rt.c.logger }

func (rt *nodeRuntime) Character() domain.Character {
	return rt.c.run.plan.graph.Clone().Character
}

func (rt *nodeRuntime) Trigger(source domain.EventSource, payload any) {
	if rt.c.event == nil {
		rt.c.logger.Debug("trigger ignored for pull node", "source", source)
		return
	}
	rt.c.enqueue(work{kind: workEvent, event: domain.NodeEvent{Source: source, Payload: payload}})
}

func (rt *nodeRuntime) Subscribe(topic string) error {
	if rt.c.event == nil {
		return fmt.Errorf("node %q is a pull node and cannot subscribe to %q", rt.c.id(), topic)
	}
	c := rt.c
	_, err := c.run.bus.Subscribe(topic, func(_ context.Context, msg bus.Message) error {
		c.enqueue(work{kind: workEvent, event: domain.NodeEvent{
			Source:  domain.SourceBus,
			Topic:   msg.Topic,
			Payload: msg.Payload,
		}})
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}
	return nil
}

func (rt *nodeRuntime) Publish(topic string, payload any) error {
	return rt.c.run.bus.Publish(topic, payload)
}

func (rt *nodeRuntime) Log(level domain.Level, msg string) {
	rt.c.run.emitLog(rt.c, level, msg)
}

func (rt *nodeRuntime) Emit(artifact string, payload any) {
	rt.c.run.emit(domain.Event{
		Type:     domain.EventArtifact,
		NodeID:   rt.c.id(),
		NodeType: rt.c.plan.def.Type,
		Artifact: artifact,
		Data:     payload,
	})
}
