/*
Package ports defines the interfaces between the workflow executor and
everything it drives or is driven by.

# Key Interfaces

  - Node, PullNode, EventNode: the contract every node type implements.
  - Runtime: the capabilities the executor hands a node during Setup.
  - Observer: receives lifecycle, status, log and artifact events.
  - GraphSource / GraphStore: load (and persist) workflow graphs.
  - RunLocker: optional cross-process guard for one run per graph.
*/
package ports
