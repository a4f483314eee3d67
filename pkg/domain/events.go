package domain

import "time"

// EventType defines the category of an observer event.
type EventType string

const (
	EventLog              EventType = "log"
	EventNodeStatus       EventType = "node.status"
	EventExecutionStarted EventType = "execution.started"
	EventExecutionStopped EventType = "execution.stopped"
	EventArtifact         EventType = "artifact"
)

// Level is the severity of a log event.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warning"
	LevelError Level = "error"
)

// ParseLevel maps common spellings to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "err":
		return LevelError
	default:
		return LevelInfo
	}
}

// Event is an immutable record delivered to observers. Node-scoped events
// carry NodeID and NodeType; run-scoped ones leave them empty.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	GraphID   string    `json:"graph_id"`
	NodeID    string    `json:"node_id,omitempty"`
	NodeType  string    `json:"node_type,omitempty"`
	Level     Level     `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Artifact  string    `json:"artifact,omitempty"`
	Data      any       `json:"data,omitempty"`
	Cycle     int       `json:"cycle,omitempty"`
	Duration  float64   `json:"duration_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSource tells an event-driven node where a NodeEvent came from.
type EventSource string

const (
	SourceTimer    EventSource = "timer"
	SourceBus      EventSource = "bus"
	SourceInput    EventSource = "input"
	SourceInject   EventSource = "inject"
	SourceExternal EventSource = "external"
)

// NodeEvent is a single stimulus delivered to an event-driven node.
type NodeEvent struct {
	Source EventSource
	// Topic is set for bus events.
	Topic string
	// Port is set when data arrived on an input port.
	Port    string
	Payload any
}
