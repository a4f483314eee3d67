package dsl

import "github.com/oboroge0/AITuberFlow-sub001/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.NodeDef
	builder *Builder
}

// Type sets the registered node type.
func (n *NodeBuilder) Type(nodeType string) *NodeBuilder {
	n.node.Type = nodeType
	return n
}

// Name sets the display name.
func (n *NodeBuilder) Name(name string) *NodeBuilder {
	n.node.Name = name
	return n
}

// Set adds one config entry.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	if n.node.Config == nil {
		n.node.Config = make(map[string]any)
	}
	n.node.Config[key] = value
	return n
}

// Config merges settings into the node config.
func (n *NodeBuilder) Config(settings map[string]any) *NodeBuilder {
	for k, v := range settings {
		n.Set(k, v)
	}
	return n
}

// Entry marks the node as an explicit entry point.
func (n *NodeBuilder) Entry() *NodeBuilder {
	n.node.Entry = true
	return n
}

// Pipe connects the output port of this node to a "node.port" target.
func (n *NodeBuilder) Pipe(port, target string) *NodeBuilder {
	n.builder.Connect(n.node.ID+"."+port, target)
	return n
}

// Build returns the underlying domain.NodeDef.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.NodeDef {
	return n.node
}
