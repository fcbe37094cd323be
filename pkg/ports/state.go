package ports

import "context"

// StateFunc returns the observed state of a workflow. It may return nil when
// nothing is tracked; the engine treats the result as opaque.
type StateFunc func(ctx context.Context) map[string]any
