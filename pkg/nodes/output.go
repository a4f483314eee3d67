package nodes

import (
	"context"
	"fmt"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// Artifact kinds emitted by the output nodes.
const (
	ArtifactSubtitle = "subtitle"
	ArtifactAvatar   = "avatar"
)

// LogOutput reports its input as a log event.
type LogOutput struct {
	base
	level  domain.Level
	prefix string
}

func (l *LogOutput) Configure(settings map[string]any) error {
	cfg := struct {
		Level  string `mapstructure:"level"`
		Prefix string `mapstructure:"prefix"`
	}{Level: "info"}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	l.level = domain.ParseLevel(cfg.Level)
	l.prefix = cfg.Prefix
	return nil
}

func (l *LogOutput) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	l.rt.Log(l.level, l.prefix+stringify(in["message"]))
	return nil, nil
}

// Publish sends its input to a bus topic, closing logical loops that data
// ports may not.
type Publish struct {
	base
	topic string
}

func (p *Publish) Configure(settings map[string]any) error {
	cfg := struct {
		Topic string `mapstructure:"topic"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	if cfg.Topic == "" {
		return fmt.Errorf("topic must not be empty")
	}
	p.topic = cfg.Topic
	return nil
}

func (p *Publish) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	if err := p.rt.Publish(p.topic, in["payload"]); err != nil {
		return nil, fmt.Errorf("publish to %q: %w", p.topic, err)
	}
	return nil, nil
}

// Subtitle shows text to viewers.
type Subtitle struct {
	base
	speaker string
}

func (s *Subtitle) Configure(settings map[string]any) error {
	cfg := struct {
		Speaker string `mapstructure:"speaker"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	s.speaker = cfg.Speaker
	return nil
}

func (s *Subtitle) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	text := stringify(in["text"])
	speaker := s.speaker
	if speaker == "" {
		speaker = s.rt.Character().Name
	}
	s.rt.Emit(ArtifactSubtitle, map[string]any{"text": text, "speaker": speaker})
	return ports.Outputs{"text": text}, nil
}

// Avatar forwards expression and motion commands to the avatar renderer.
type Avatar struct {
	base
	motion   string
	duration float64
}

func (a *Avatar) Configure(settings map[string]any) error {
	cfg := struct {
		Motion   string  `mapstructure:"motion"`
		Duration float64 `mapstructure:"duration"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	a.motion, a.duration = cfg.Motion, cfg.Duration
	return nil
}

func (a *Avatar) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	cmd := map[string]any{"expression": stringify(in["expression"])}
	if a.motion != "" {
		cmd["motion"] = a.motion
	}
	if a.duration > 0 {
		cmd["duration"] = a.duration
	}
	a.rt.Emit(ArtifactAvatar, cmd)
	return nil, nil
}

// Artifact forwards arbitrary data as an artifact of a configured kind,
// e.g. "audio" for a clip produced upstream.
type Artifact struct {
	base
	kind string
}

func (a *Artifact) Configure(settings map[string]any) error {
	cfg := struct {
		Kind string `mapstructure:"kind"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	if cfg.Kind == "" {
		return fmt.Errorf("kind must not be empty")
	}
	a.kind = cfg.Kind
	return nil
}

func (a *Artifact) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	a.rt.Emit(a.kind, in["data"])
	return nil, nil
}
