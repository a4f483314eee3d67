package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// Factory builds a fresh, unconfigured node instance.
type Factory func() ports.Node

// Descriptor is the static declaration of a node type: how the executor
// drives it, its ports and its settings schema.
type Descriptor struct {
	Type        string          `json:"type"`
	Kind        domain.NodeKind `json:"kind"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Inputs      []domain.Port   `json:"inputs"`
	Outputs     []domain.Port   `json:"outputs"`
	Schema      schema.Schema   `json:"schema,omitempty"`
	New         Factory         `json:"-"`
}

// Input returns the declared input port with the given name.
func (d Descriptor) Input(name string) (domain.Port, bool) {
	return findPort(d.Inputs, name)
}

// Output returns the declared output port with the given name.
func (d Descriptor) Output(name string) (domain.Port, bool) {
	return findPort(d.Outputs, name)
}

func findPort(list []domain.Port, name string) (domain.Port, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Port{}, false
}

// Registry maps node type names to descriptors. It is populated at process
// start and read concurrently by every run.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Descriptor
	ports *PortTypes
}

// NewRegistry creates an empty registry with the default port type rules.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Descriptor),
		ports: NewPortTypes(),
	}
}

// PortTypes returns the compatibility and coercion rules used for connections.
func (r *Registry) PortTypes() *PortTypes {
	return r.ports
}

// Register adds a node type. Registering the same type twice is an error.
func (r *Registry) Register(d Descriptor) error {
	if d.Type == "" {
		return fmt.Errorf("register node type: empty type name")
	}
	if d.New == nil {
		return fmt.Errorf("register node type %q: nil factory", d.Type)
	}
	if d.Kind != domain.KindPull && d.Kind != domain.KindEvent {
		return fmt.Errorf("register node type %q: unknown kind %q", d.Type, d.Kind)
	}
	if err := checkPorts(d.Inputs, r.ports); err != nil {
		return fmt.Errorf("register node type %q inputs: %w", d.Type, err)
	}
	if err := checkPorts(d.Outputs, r.ports); err != nil {
		return fmt.Errorf("register node type %q outputs: %w", d.Type, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[d.Type]; exists {
		return fmt.Errorf("node type %q already registered", d.Type)
	}
	r.types[d.Type] = d
	return nil
}

// MustRegister is Register for static registration lists; it panics on error.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func checkPorts(list []domain.Port, pt *PortTypes) error {
	seen := make(map[string]bool, len(list))
	for _, p := range list {
		if p.Name == "" {
			return fmt.Errorf("port with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate port %q", p.Name)
		}
		if !pt.Known(p.Type) {
			return fmt.Errorf("port %q: unknown type %q", p.Name, p.Type)
		}
		seen[p.Name] = true
	}
	return nil
}

// Lookup returns the descriptor for a node type.
func (r *Registry) Lookup(nodeType string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[nodeType]
	return d, ok
}

// Descriptors returns every registered descriptor sorted by type name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.types))
	for _, d := range r.types {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Instantiate builds a node of the given type and checks that it implements
// the interface its kind requires.
func (r *Registry) Instantiate(nodeType string) (ports.Node, Descriptor, error) {
	d, ok := r.Lookup(nodeType)
	if !ok {
		return nil, Descriptor{}, fmt.Errorf("unknown node type %q", nodeType)
	}
	n := d.New()
	if n == nil {
		return nil, d, fmt.Errorf("factory for %q returned nil", nodeType)
	}
	switch d.Kind {
	case domain.KindPull:
		if _, ok := n.(ports.PullNode); !ok {
			return nil, d, fmt.Errorf("node type %q is declared pull but %T has no Execute", nodeType, n)
		}
	case domain.KindEvent:
		if _, ok := n.(ports.EventNode); !ok {
			return nil, d, fmt.Errorf("node type %q is declared event but %T has no OnEvent", nodeType, n)
		}
	}
	return n, d, nil
}
