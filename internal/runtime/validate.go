package runtime

import (
	"fmt"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// plan is a validated graph restricted to the nodes one run will drive.
type plan struct {
	graph domain.Graph
	nodes map[string]*planNode
	// order is the topological order of the run's nodes.
	order []string
}

type planNode struct {
	def      domain.NodeDef
	desc     registry.Descriptor
	incoming []domain.Connection
	outgoing []domain.Connection
	// connected lists the input ports fed by at least one connection of the
	// graph, including connections from nodes outside a partial run.
	connected map[string]bool
	root      bool
}

// Validate checks a graph against the registry without running it. The
// returned error is a *domain.GraphValidationError listing every problem.
func Validate(g domain.Graph, reg *registry.Registry) error {
	_, err := buildPlan(g, reg, "")
	return err
}

func buildPlan(g domain.Graph, reg *registry.Registry, from string) (*plan, error) {
	var problems []error
	descs := make(map[string]registry.Descriptor, len(g.Nodes))
	ids := make([]string, 0, len(g.Nodes))

	for _, n := range g.Nodes {
		if n.ID == "" {
			problems = append(problems, fmt.Errorf("node of type %q has an empty id", n.Type))
			continue
		}
		if _, dup := descs[n.ID]; dup {
			problems = append(problems, &domain.DuplicateNodeError{NodeID: n.ID})
			continue
		}
		d, ok := reg.Lookup(n.Type)
		if !ok {
			problems = append(problems, &domain.UnknownNodeTypeError{NodeID: n.ID, Type: n.Type})
			// Keep the id so connections to it are not also reported as unknown ports.
			descs[n.ID] = registry.Descriptor{}
			ids = append(ids, n.ID)
			continue
		}
		if err := schema.Validate(d.Schema, n.Config); err != nil {
			problems = append(problems, &domain.ConfigError{NodeID: n.ID, Err: err})
		}
		descs[n.ID] = d
		ids = append(ids, n.ID)
	}

	pt := reg.PortTypes()
	var valid []domain.Connection
	for _, c := range g.Connections {
		src, srcOK := descs[c.From.Node]
		dst, dstOK := descs[c.To.Node]
		if !srcOK {
			problems = append(problems, &domain.UnknownPortError{Endpoint: c.From, Direction: "output"})
		}
		if !dstOK {
			problems = append(problems, &domain.UnknownPortError{Endpoint: c.To, Direction: "input"})
		}
		if !srcOK || !dstOK || src.Type == "" || dst.Type == "" {
			continue
		}
		out, ok := src.Output(c.From.Port)
		if !ok {
			problems = append(problems, &domain.UnknownPortError{Endpoint: c.From, Direction: "output"})
		}
		in, ok2 := dst.Input(c.To.Port)
		if !ok2 {
			problems = append(problems, &domain.UnknownPortError{Endpoint: c.To, Direction: "input"})
		}
		if !ok || !ok2 {
			continue
		}
		if !pt.IsCompatible(out.Type, in.Type) {
			problems = append(problems, &domain.TypeMismatchError{From: c.From, To: c.To, FromType: out.Type, ToType: in.Type})
			continue
		}
		valid = append(valid, c)
	}

	order, cyclic := topoSort(ids, valid)
	if len(cyclic) > 0 {
		problems = append(problems, &domain.CycleError{Nodes: cyclic})
	}

	connectedAll := make(map[string]map[string]bool)
	for _, c := range valid {
		if connectedAll[c.To.Node] == nil {
			connectedAll[c.To.Node] = make(map[string]bool)
		}
		connectedAll[c.To.Node][c.To.Port] = true
	}
	for _, n := range g.Nodes {
		d := descs[n.ID]
		if d.Kind != domain.KindPull || n.Entry {
			continue
		}
		for _, in := range d.Inputs {
			if !in.Optional && !connectedAll[n.ID][in.Name] {
				problems = append(problems, &domain.UnconnectedInputError{NodeID: n.ID, Port: in.Name})
			}
		}
	}

	if from != "" {
		if _, ok := descs[from]; !ok {
			problems = append(problems, fmt.Errorf("start node %q: %w", from, domain.ErrNodeNotFound))
		}
	}

	if len(problems) > 0 {
		return nil, &domain.GraphValidationError{GraphID: g.ID, Problems: problems}
	}

	include := func(string) bool { return true }
	if from != "" {
		reach := downstream(from, valid)
		include = func(id string) bool { return reach[id] }
	}

	p := &plan{graph: g, nodes: make(map[string]*planNode)}
	for _, n := range g.Nodes {
		if include(n.ID) {
			p.nodes[n.ID] = &planNode{def: n, desc: descs[n.ID], connected: make(map[string]bool)}
		}
	}
	for _, id := range order {
		if include(id) {
			p.order = append(p.order, id)
		}
	}
	for _, c := range valid {
		src, dst := p.nodes[c.From.Node], p.nodes[c.To.Node]
		if dst != nil {
			// Inputs fed from outside a partial run still count, so the
			// node waits for them instead of running without them.
			dst.connected[c.To.Port] = true
		}
		if src == nil || dst == nil {
			continue
		}
		src.outgoing = append(src.outgoing, c)
		dst.incoming = append(dst.incoming, c)
	}
	for id, pn := range p.nodes {
		pn.root = len(pn.incoming) == 0 || pn.def.Entry || id == from
	}
	return p, nil
}
