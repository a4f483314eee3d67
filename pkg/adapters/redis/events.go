package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// EventPublisher is an observer that publishes every run event as JSON on
// <prefix>events:<graph id>, for dashboards living in other processes.
type EventPublisher struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

func NewEventPublisher(client *backend.Client, prefix string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventPublisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the channel events of a graph are published on.
func (p *EventPublisher) Channel(graphID string) string {
	return p.prefix + "events:" + graphID
}

func (p *EventPublisher) OnEvent(ctx context.Context, ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encode event", "type", ev.Type, "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.Channel(ev.GraphID), data).Err(); err != nil {
		p.logger.Warn("publish event", "type", ev.Type, "error", err)
	}
}
