package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	backend "github.com/redis/go-redis/v9"
)

// Publisher receives bridged messages. The service passes a publisher that
// fans them out to the bus of every active run.
type Publisher interface {
	Publish(topic string, payload any) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, payload any) error

func (f PublisherFunc) Publish(topic string, payload any) error { return f(topic, payload) }

// Bridge forwards Redis pub/sub messages to bus topics so external chat
// clients can reach chat listener nodes. Channel <prefix><topic> maps to
// topic <topic>. JSON payloads are decoded; anything else stays a string.
type Bridge struct {
	client *backend.Client
	prefix string
	topics []string
	target Publisher
	logger *slog.Logger
	ready  chan struct{}
}

// NewBridge creates a bridge for the given bus topics.
func NewBridge(client *backend.Client, prefix string, topics []string, target Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		client: client,
		prefix: prefix,
		topics: topics,
		target: target,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once every channel subscription is confirmed.
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Channel returns the Redis channel a bus topic is bridged from.
func (b *Bridge) Channel(topic string) string { return b.prefix + topic }

// Run subscribes and forwards messages until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if len(b.topics) == 0 {
		close(b.ready)
		<-ctx.Done()
		return nil
	}
	channels := make([]string, len(b.topics))
	for i, t := range b.topics {
		channels[i] = b.Channel(t)
	}

	ps := b.client.Subscribe(ctx, channels...)
	defer ps.Close()

	for confirmed := 0; confirmed < len(channels); {
		msg, err := ps.Receive(ctx)
		if err != nil {
			return fmt.Errorf("subscribe %v: %w", channels, err)
		}
		if sub, ok := msg.(*backend.Subscription); ok && sub.Kind == "subscribe" {
			confirmed = sub.Count
		}
	}
	close(b.ready)
	b.logger.Info("redis bridge subscribed", "channels", channels)

	in := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			topic := strings.TrimPrefix(msg.Channel, b.prefix)
			if err := b.target.Publish(topic, decodePayload(msg.Payload)); err != nil {
				b.logger.Warn("bridge publish failed", "topic", topic, "error", err)
			}
		}
	}
}

func decodePayload(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
