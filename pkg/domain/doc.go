/*
Package domain contains the core domain models of the AITuberFlow workflow engine.

It defines the graph a user assembles (nodes, typed ports, connections and the
character/persona configuration), the node status state machine, and the events
the executor reports to observers. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Graph: the set of NodeDefs, Connections and the Character consumed by LLM-type nodes.
  - NodeDef: one node instance (id, type, configuration, entry flag).
  - Port / Connection: typed attachment points and the directed edges between them.
  - Status: the per-node lifecycle (idle, running, succeeded, failed, stopped).
  - Event: an immutable record emitted append-only to observers (logs, status, artifacts).
*/
package domain
