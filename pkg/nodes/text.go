package nodes

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// Text emits a constant string on every activation.
type Text struct {
	base
	text string
}

func (t *Text) Configure(settings map[string]any) error {
	cfg := struct {
		Text string `mapstructure:"text"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	t.text = cfg.Text
	return nil
}

func (t *Text) Execute(context.Context, ports.Inputs) (ports.Outputs, error) {
	return ports.Outputs{"text": t.text}, nil
}

// Template renders its input through a text/template. The template sees
// .input, .character and, for record inputs, every record key.
type Template struct {
	base
	tmpl *template.Template
}

func (t *Template) Configure(settings map[string]any) error {
	cfg := struct {
		Template string `mapstructure:"template"`
	}{}
	if err := schema.Decode(settings, &cfg); err != nil {
		return err
	}
	tmpl, err := template.New("node").Option("missingkey=zero").Parse(cfg.Template)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	t.tmpl = tmpl
	return nil
}

func (t *Template) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	data := map[string]any{}
	if rec, ok := in["input"].(map[string]any); ok {
		for k, v := range rec {
			data[k] = v
		}
	}
	data["input"] = in["input"]
	if t.rt != nil {
		ch := t.rt.Character()
		data["character"] = map[string]any{
			"name":        ch.Name,
			"prompt":      ch.Prompt,
			"personality": ch.Personality,
		}
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return ports.Outputs{"text": buf.String()}, nil
}

// Passthrough forwards its input unchanged.
type Passthrough struct {
	base
}

func (p *Passthrough) Configure(map[string]any) error { return nil }

func (p *Passthrough) Execute(_ context.Context, in ports.Inputs) (ports.Outputs, error) {
	return ports.Outputs{"out": in["in"]}, nil
}
