package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunNotFound is returned when a run ID is unknown to the executor.
	ErrRunNotFound = errors.New("run not found")
	// ErrNodeNotFound is returned when a node ID is not part of a run or graph.
	ErrNodeNotFound = errors.New("node not found")
	// ErrGraphNotFound is returned by graph sources for unknown graph IDs.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrLocked is returned by run lockers when another holder owns the key.
	ErrLocked = errors.New("resource locked")
)

// GraphValidationError aggregates every problem found while validating a graph.
type GraphValidationError struct {
	GraphID  string
	Problems []error
}

func (e *GraphValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("graph %q is invalid (%d problems): %s", e.GraphID, len(e.Problems), strings.Join(msgs, "; "))
}

func (e *GraphValidationError) Unwrap() []error {
	return e.Problems
}

// TypeMismatchError reports a connection between incompatible port types.
type TypeMismatchError struct {
	From     Endpoint
	To       Endpoint
	FromType PortType
	ToType   PortType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s (%s) cannot feed %s (%s)", e.From, e.FromType, e.To, e.ToType)
}

// CycleError reports a cycle among data connections.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("data connections form a cycle through %s", strings.Join(e.Nodes, ", "))
}

// UnknownNodeTypeError reports a node whose type is not registered.
type UnknownNodeTypeError struct {
	NodeID string
	Type   string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("node %q: unknown node type %q", e.NodeID, e.Type)
}

// UnknownPortError reports a connection that names a missing node or port.
type UnknownPortError struct {
	Endpoint  Endpoint
	Direction string
}

func (e *UnknownPortError) Error() string {
	return fmt.Sprintf("unknown %s port %s", e.Direction, e.Endpoint)
}

// DuplicateNodeError reports two nodes sharing an ID.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node id %q", e.NodeID)
}

// ConfigError reports settings rejected by a node type's schema or Configure.
type ConfigError struct {
	NodeID string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("node %q: invalid config: %v", e.NodeID, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UnconnectedInputError reports a non-entry pull node with a required input left open.
type UnconnectedInputError struct {
	NodeID string
	Port   string
}

func (e *UnconnectedInputError) Error() string {
	return fmt.Sprintf("node %q: required input %q is not connected and node is not an entry point", e.NodeID, e.Port)
}

// SetupError reports a root or entry node whose Setup failed, aborting the run.
type SetupError struct {
	NodeID string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of node %q failed: %v", e.NodeID, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ExecutionError reports a failed or panicking node invocation.
type ExecutionError struct {
	NodeID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.NodeID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// StopError reports a stop request that could not be honoured.
type StopError struct {
	RunID string
	Err   error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("stop run %q: %v", e.RunID, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// AlreadyRunningError is returned when a graph already has an active run.
type AlreadyRunningError struct {
	GraphID string
	RunID   string
}

func (e *AlreadyRunningError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("graph %q is already running elsewhere", e.GraphID)
	}
	return fmt.Sprintf("graph %q is already running as %s", e.GraphID, e.RunID)
}
