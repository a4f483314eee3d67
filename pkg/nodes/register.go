package nodes

import (
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// Type names of the built-in nodes.
const (
	TypeTimer        = "timer"
	TypeChatListener = "chat_listener"
	TypeText         = "text"
	TypeTemplate     = "template"
	TypePassthrough  = "passthrough"
	TypeLogOutput    = "log_output"
	TypePublish      = "publish"
	TypeLLM          = "llm"
	TypeSubtitle     = "subtitle"
	TypeAvatar       = "avatar"
	TypeArtifact     = "artifact"
	TypeCommand      = "command"
)

// DefaultChatTopic is the bus topic chat listeners follow unless configured.
const DefaultChatTopic = "chat.message"

var levels = []any{"debug", "info", "warn", "warning", "error"}

// Option tunes the built-in node library.
type Option func(*options)

type options struct {
	llm      LLMDefaults
	commands CommandRunner
}

// WithLLMDefaults sets the model, endpoint and key variable llm nodes fall
// back to when their config leaves them out.
func WithLLMDefaults(d LLMDefaults) Option {
	return func(o *options) {
		o.llm = d
	}
}

// WithCommandRunner lets command nodes run the programs r allows.
func WithCommandRunner(r CommandRunner) Option {
	return func(o *options) {
		o.commands = r
	}
}

// Descriptors returns the declarations of every built-in node type.
func Descriptors(opts ...Option) []registry.Descriptor {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return []registry.Descriptor{
		{
			Type:        TypeTimer,
			Kind:        domain.KindEvent,
			Category:    "source",
			Description: "Fires every `interval` seconds for the lifetime of the run.",
			Outputs: []domain.Port{
				{Name: "tick", Type: domain.PortNumber, Description: "tick count, starting at 1"},
				{Name: "timestamp", Type: domain.PortString},
				{Name: "payload", Type: domain.PortAny},
			},
			Schema: schema.Schema{
				"interval":  schema.Range(schema.Float(), 0.01, 86400),
				"immediate": schema.Optional(schema.Bool()),
				"payload":   schema.Optional(schema.Any()),
			},
			New: func() ports.Node { return &Timer{} },
		},
		{
			Type:        TypeChatListener,
			Kind:        domain.KindEvent,
			Category:    "source",
			Description: "Listens for chat messages published on a bus topic.",
			Outputs: []domain.Port{
				{Name: "text", Type: domain.PortString},
				{Name: "user", Type: domain.PortString},
				{Name: "message", Type: domain.PortRecord},
			},
			Schema: schema.Schema{
				"topic": schema.Optional(schema.String()),
			},
			New: func() ports.Node { return &ChatListener{} },
		},
		{
			Type:        TypeText,
			Kind:        domain.KindPull,
			Category:    "text",
			Description: "Emits a fixed text each time it is activated.",
			Inputs:      []domain.Port{{Name: "trigger", Type: domain.PortAny, Optional: true}},
			Outputs:     []domain.Port{{Name: "text", Type: domain.PortString}},
			Schema:      schema.Schema{"text": schema.String()},
			New:         func() ports.Node { return &Text{} },
		},
		{
			Type:        TypeTemplate,
			Kind:        domain.KindPull,
			Category:    "text",
			Description: "Renders a Go text/template with the input and the character.",
			Inputs:      []domain.Port{{Name: "input", Type: domain.PortAny}},
			Outputs:     []domain.Port{{Name: "text", Type: domain.PortString}},
			Schema:      schema.Schema{"template": schema.String()},
			New:         func() ports.Node { return &Template{} },
		},
		{
			Type:        TypePassthrough,
			Kind:        domain.KindPull,
			Category:    "utility",
			Description: "Forwards its input unchanged.",
			Inputs:      []domain.Port{{Name: "in", Type: domain.PortAny}},
			Outputs:     []domain.Port{{Name: "out", Type: domain.PortAny}},
			New:         func() ports.Node { return &Passthrough{} },
		},
		{
			Type:        TypeLogOutput,
			Kind:        domain.KindPull,
			Category:    "output",
			Description: "Writes its input to the run log.",
			Inputs:      []domain.Port{{Name: "message", Type: domain.PortAny}},
			Schema: schema.Schema{
				"level":  schema.Optional(schema.OneOf(schema.String(), levels...)),
				"prefix": schema.Optional(schema.String()),
			},
			New: func() ports.Node { return &LogOutput{} },
		},
		{
			Type:        TypePublish,
			Kind:        domain.KindPull,
			Category:    "output",
			Description: "Publishes its input on a bus topic.",
			Inputs:      []domain.Port{{Name: "payload", Type: domain.PortAny}},
			Schema:      schema.Schema{"topic": schema.String()},
			New:         func() ports.Node { return &Publish{} },
		},
		{
			Type:        TypeLLM,
			Kind:        domain.KindPull,
			Category:    "ai",
			Description: "Asks an OpenAI-compatible chat model to answer as the character.",
			Inputs:      []domain.Port{{Name: "prompt", Type: domain.PortString}},
			Outputs:     []domain.Port{{Name: "reply", Type: domain.PortString}},
			Schema: schema.Schema{
				"model":         schema.Optional(schema.String()),
				"base_url":      schema.Optional(schema.String()),
				"api_key_env":   schema.Optional(schema.String()),
				"system_prompt": schema.Optional(schema.String()),
				"temperature":   schema.Optional(schema.Range(schema.Float(), 0, 2)),
				"timeout":       schema.Optional(schema.String()),
			},
			New: func() ports.Node { return &LLM{defaults: o.llm} },
		},
		{
			Type:        TypeSubtitle,
			Kind:        domain.KindPull,
			Category:    "output",
			Description: "Shows its input as a subtitle artifact.",
			Inputs:      []domain.Port{{Name: "text", Type: domain.PortString}},
			Outputs:     []domain.Port{{Name: "text", Type: domain.PortString}},
			Schema: schema.Schema{
				"speaker": schema.Optional(schema.String()),
			},
			New: func() ports.Node { return &Subtitle{} },
		},
		{
			Type:        TypeAvatar,
			Kind:        domain.KindPull,
			Category:    "output",
			Description: "Sends an expression/motion command to the avatar.",
			Inputs:      []domain.Port{{Name: "expression", Type: domain.PortString}},
			Schema: schema.Schema{
				"motion":   schema.Optional(schema.String()),
				"duration": schema.Optional(schema.Range(schema.Float(), 0, 600)),
			},
			New: func() ports.Node { return &Avatar{} },
		},
		{
			Type:        TypeArtifact,
			Kind:        domain.KindPull,
			Category:    "output",
			Description: "Forwards its input verbatim as an artifact of the configured kind.",
			Inputs:      []domain.Port{{Name: "data", Type: domain.PortAny}},
			Schema:      schema.Schema{"kind": schema.String()},
			New:         func() ports.Node { return &Artifact{} },
		},
		{
			Type:        TypeCommand,
			Kind:        domain.KindPull,
			Category:    "utility",
			Description: "Pipes its input into an allow-listed external program, such as a TTS engine.",
			Inputs:      []domain.Port{{Name: "input", Type: domain.PortAny}},
			Outputs:     []domain.Port{{Name: "output", Type: domain.PortAny, Description: "stdout, decoded when it is JSON"}},
			Schema: schema.Schema{
				"command": schema.String(),
				"vars":    schema.Optional(schema.Record()),
				"timeout": schema.Optional(schema.String()),
			},
			New: func() ports.Node { return &Command{runner: o.commands} },
		},
	}
}

// Register adds every built-in node type to reg.
func Register(reg *registry.Registry, opts ...Option) error {
	for _, d := range Descriptors(opts...) {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
