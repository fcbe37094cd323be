/*
Package domain contains the core data records of the canopy workflow tree.

It defines the fundamental entities shared by the runtime tree, its observers and
any serialization boundary. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Node: The data-record mirror of a runtime workflow (id, name, status, logs, events, snapshot).
  - LogEntry: A single append-only log line recorded against a node.
  - Event: The closed, discriminated set of lifecycle events (childAttached, childDetached, ...).
  - ValidationError / IntegrityError / ObserverError: The error taxonomy of the tree engine.
*/
package domain
