package domain

// Status is the lifecycle state of one node instance within a run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further transition is allowed (within a cycle).
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusStopped
}

// CanTransition reports whether the state machine allows from -> to.
//
//	idle    -> running | stopped
//	running -> succeeded | failed | stopped
//
// A pull node re-activated by an event-driven upstream starts a new cycle,
// which is the only way back to running from succeeded or failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusRunning || to == StatusStopped || to == StatusFailed
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed || to == StatusStopped
	default:
		return false
	}
}

// RunState is the coarse state of a whole run.
type RunState string

const (
	RunStarting RunState = "starting"
	RunRunning  RunState = "running"
	RunStopping RunState = "stopping"
	RunStopped  RunState = "stopped"
)

// NodeState is a point-in-time view of one node in a run.
type NodeState struct {
	NodeID string   `json:"node_id"`
	Type   string   `json:"type"`
	Kind   NodeKind `json:"kind"`
	Status Status   `json:"status"`
	// Cycle counts activations of a pull node; event nodes stay on cycle 1.
	Cycle     int    `json:"cycle"`
	LastError string `json:"last_error,omitempty"`
}

// RunSnapshot is a point-in-time view of a run.
type RunSnapshot struct {
	RunID   string      `json:"run_id"`
	GraphID string      `json:"graph_id"`
	State   RunState    `json:"state"`
	Nodes   []NodeState `json:"nodes"`
}
