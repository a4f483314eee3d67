package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// ChatMessage is the record chat listeners emit.
type ChatMessage struct {
	Text string `mapstructure:"text" json:"text"`
	User string `mapstructure:"user" json:"user,omitempty"`
	// Platform names the origin (youtube, twitch, ...), when known.
	Platform string `mapstructure:"platform" json:"platform,omitempty"`
}

// ChatListener turns bus messages on a topic into chat outputs.
type ChatListener struct {
	base
	topic string
}

func (c *ChatListener) Configure(settings map[string]any) error {
	cfg := struct {
		Topic string `mapstructure:"topic"`
	}{Topic: DefaultChatTopic}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	c.topic = cfg.Topic
	return nil
}

func (c *ChatListener) Setup(_ context.Context, rt ports.Runtime) error {
	c.rt = rt
	return rt.Subscribe(c.topic)
}

func (c *ChatListener) OnEvent(_ context.Context, ev domain.NodeEvent) (ports.Outputs, error) {
	msg, err := parseChat(ev.Payload)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, nil
	}
	return ports.Outputs{
		"text": msg.Text,
		"user": msg.User,
		"message": map[string]any{
			"text":     msg.Text,
			"user":     msg.User,
			"platform": msg.Platform,
		},
	}, nil
}

func parseChat(payload any) (ChatMessage, error) {
	switch p := payload.(type) {
	case string:
		return ChatMessage{Text: p}, nil
	case ChatMessage:
		return p, nil
	case *ChatMessage:
		return *p, nil
	case map[string]any:
		var msg ChatMessage
		if err := schema.Decode(p, &msg); err != nil {
			return ChatMessage{}, err
		}
		if msg.User == "" {
			if author, ok := p["author"].(string); ok {
				msg.User = author
			}
		}
		return msg, nil
	default:
		return ChatMessage{}, fmt.Errorf("unsupported chat payload %T", payload)
	}
}
