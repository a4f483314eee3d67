// Package nodes is the built-in node library: event sources (timer, chat
// listener), text shaping (text, template, passthrough), the LLM call and the
// output nodes that publish to the bus, log, or emit artifacts for the
// presentation layer.
//
// Register adds every type to a registry.Registry at process start.
package nodes
