/*
Package ports defines the interfaces between the canopy tree engine and its collaborators.

These interfaces decouple the core tree logic from observers, state capture and
event trail backends, allowing the engine to be wired to loggers, metrics, debuggers
and storage adapters without depending on them.

# Key Interfaces

  - Observer: Receives logs, events, state updates and tree changes from a root workflow.
  - StateFunc: Supplies the observed state captured into a node's snapshot.
  - TrailSink: Stores the encoded event trail of a tree (e.g., in Memory or Redis).
*/
package ports
