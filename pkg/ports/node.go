package ports

import (
	"context"
	"log/slog"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Inputs holds the values a pull node fires with, keyed by input port name.
type Inputs map[string]any

// Outputs holds produced values keyed by output port name. Ports absent from
// the map produce nothing for that activation.
type Outputs map[string]any

// Node is the lifecycle every node type implements. A node instance lives for
// exactly one run.
type Node interface {
	// Configure receives the schema-validated settings. It must not perform I/O.
	Configure(settings map[string]any) error
	// Setup acquires resources. It is bounded by the executor's setup timeout.
	Setup(ctx context.Context, rt Runtime) error
	// Teardown releases resources. It is called exactly once per instantiated node.
	Teardown(ctx context.Context) error
}

// PullNode fires once per activation, when all connected inputs carry a value.
type PullNode interface {
	Node
	Execute(ctx context.Context, in Inputs) (Outputs, error)
}

// EventNode stays alive for the whole run and reacts to NodeEvents: timer
// ticks, bus messages, injected input and data arriving on its input ports.
type EventNode interface {
	Node
	OnEvent(ctx context.Context, ev domain.NodeEvent) (Outputs, error)
}

// Runtime is the per-node view of a run, handed to Setup.
type Runtime interface {
	RunID() string
	NodeID() string
	// Context is cancelled when the run stops.
	Context() context.Context
	Character() domain.Character
	// Trigger queues an OnEvent call for this node. It is ignored for pull nodes
	// and after the run stops.
	Trigger(source domain.EventSource, payload any)
	// Subscribe delivers every message on topic to this node as a bus NodeEvent.
	Subscribe(topic string) error
	Publish(topic string, payload any) error
	// Log reports a log event to the run's observers.
	Log(level domain.Level, msg string)
	// Emit reports an opaque artifact (audio, avatar command, subtitle) to observers.
	Emit(artifact string, payload any)
	Logger() *slog.Logger
}
