package dsl

import (
	"errors"
	"fmt"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/memory"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	graph domain.Graph
	order []string
	nodes map[string]*NodeBuilder
	links [][2]string
}

// New creates a new graph builder.
func New(id string) *Builder {
	return &Builder{
		graph: domain.Graph{ID: id},
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name of the graph.
func (b *Builder) Name(name string) *Builder {
	b.graph.Name = name
	return b
}

// Character sets the persona shared by every node of the graph.
func (b *Builder) Character(name, prompt string) *Builder {
	b.graph.Character.Name = name
	b.graph.Character.Prompt = prompt
	return b
}

// Trait adds a personality entry to the character.
func (b *Builder) Trait(key string, value any) *Builder {
	if b.graph.Character.Personality == nil {
		b.graph.Character.Personality = make(map[string]any)
	}
	b.graph.Character.Personality[key] = value
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.NodeDef{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Connect wires two endpoints written as "node.port".
func (b *Builder) Connect(from, to string) *Builder {
	b.links = append(b.links, [2]string{from, to})
	return b
}

// Build returns the graph in the order nodes and connections were added.
// Endpoint notation and missing node types are checked here; everything
// else is left to Service.Validate.
func (b *Builder) Build() (domain.Graph, error) {
	g := b.graph
	g.Nodes = make([]domain.NodeDef, 0, len(b.order))
	g.Connections = make([]domain.Connection, 0, len(b.links))

	var errs []error
	if g.ID == "" {
		errs = append(errs, errors.New("graph id is empty"))
	}
	for _, id := range b.order {
		n := b.nodes[id].node
		if n.Type == "" {
			errs = append(errs, fmt.Errorf("node %q has no type", id))
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, link := range b.links {
		from, err := domain.ParseEndpoint(link[0])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		to, err := domain.ParseEndpoint(link[1])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.Connections = append(g.Connections, domain.Connection{From: from, To: to})
	}
	if len(errs) > 0 {
		return domain.Graph{}, fmt.Errorf("build graph %q: %w", g.ID, errors.Join(errs...))
	}
	return g, nil
}

// Store builds the graph into a memory store, ready for WithGraphSource.
func (b *Builder) Store() (*memory.Store, error) {
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewStore(g), nil
}
