package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PortType names the kind of value a port carries.
type PortType string

const (
	PortString  PortType = "string"
	PortNumber  PortType = "number"
	PortBoolean PortType = "boolean"
	PortRecord  PortType = "record"
	// PortAny is compatible with every other type. Used for generic pass-through nodes.
	PortAny PortType = "any"
)

// Port is a named, typed attachment point declared statically by a node type.
type Port struct {
	Name string   `json:"name" yaml:"name"`
	Type PortType `json:"type" yaml:"type"`
	// Streaming ports queue every value instead of keeping only the latest one.
	Streaming bool `json:"streaming,omitempty" yaml:"streaming,omitempty"`
	// Optional input ports do not need a connection for the graph to validate.
	Optional    bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NodeKind selects how the executor drives a node.
type NodeKind string

const (
	// KindPull nodes fire once per activation, when every connected input is filled.
	KindPull NodeKind = "pull"
	// KindEvent nodes stay alive for the whole run and react to events.
	KindEvent NodeKind = "event"
)

// NodeDef is one node instance of a workflow graph.
type NodeDef struct {
	ID     string         `json:"id" yaml:"id" mapstructure:"id"`
	Type   string         `json:"type" yaml:"type" mapstructure:"type"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
	// Entry marks the node as an explicit entry point (or independent event source).
	Entry bool `json:"entry,omitempty" yaml:"entry,omitempty" mapstructure:"entry"`
}

// Endpoint addresses one port of one node.
type Endpoint struct {
	Node string `json:"node" yaml:"node" mapstructure:"node"`
	Port string `json:"port" yaml:"port" mapstructure:"port"`
}

func (e Endpoint) String() string {
	return e.Node + "." + e.Port
}

// ParseEndpoint parses the "node.port" notation used by graph files.
// The port is everything after the last dot so node IDs may contain dots.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: expected <node>.<port>", s)
	}
	return Endpoint{Node: s[:i], Port: s[i+1:]}, nil
}

// UnmarshalJSON accepts both {"node":..,"port":..} and the "node.port" shorthand.
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		ep, err := ParseEndpoint(s)
		if err != nil {
			return err
		}
		*e = ep
		return nil
	}
	type plain Endpoint
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	*e = Endpoint(p)
	return nil
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	From Endpoint `json:"from" yaml:"from"`
	To   Endpoint `json:"to" yaml:"to"`
}

func (c Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// Character is the persona configuration consumed by LLM-type nodes.
type Character struct {
	Name        string         `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Prompt      string         `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	Personality map[string]any `json:"personality,omitempty" yaml:"personality,omitempty" mapstructure:"personality"`
}

// Graph is a workflow definition: nodes, typed connections and the character.
type Graph struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes       []NodeDef    `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
	Character   Character    `json:"character,omitempty" yaml:"character,omitempty"`
}

// Node returns the definition with the given ID.
func (g *Graph) Node(id string) (NodeDef, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDef{}, false
}

// Clone returns a deep copy. The executor runs on a clone so edits to the
// caller's graph never leak into a live run.
func (g Graph) Clone() Graph {
	out := Graph{
		ID:          g.ID,
		Name:        g.Name,
		Nodes:       make([]NodeDef, len(g.Nodes)),
		Connections: append([]Connection(nil), g.Connections...),
		Character: Character{
			Name:        g.Character.Name,
			Prompt:      g.Character.Prompt,
			Personality: cloneMap(g.Character.Personality),
		},
	}
	for i, n := range g.Nodes {
		n.Config = cloneMap(n.Config)
		out.Nodes[i] = n
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch val := v.(type) {
		case map[string]any:
			dst[k] = cloneMap(val)
		case []any:
			dst[k] = append([]any(nil), val...)
		default:
			dst[k] = v
		}
	}
	return dst
}
