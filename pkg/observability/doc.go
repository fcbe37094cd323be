/*
Package observability provides observers that make a workflow tree visible from
the outside.

  - LoggingObserver writes every callback to a structured logger.
  - Metrics counts events, logs and state updates with Prometheus collectors.
  - Trail encodes events with the wire codec and ships them to a ports.TrailSink.
  - Broadcaster fans encoded events out to live subscribers (SSE streams).

All of them are registered on a root workflow with AddObserver. Callbacks run
inside the tree's critical section, so the observers here only do in-memory
work there; anything that performs I/O is handed to a background goroutine.
*/
package observability
