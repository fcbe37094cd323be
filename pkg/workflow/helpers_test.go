package workflow_test

import (
	"sync"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workflow"
	"github.com/stretchr/testify/require"
)

// recorder captures every callback in order.
type recorder struct {
	mu      sync.Mutex
	calls   []string
	events  []domain.Event
	logs    []domain.LogEntry
	states  []*domain.Node
	changed []*domain.Node
}

func (r *recorder) OnLog(entry domain.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "log")
	r.logs = append(r.logs, entry)
}

func (r *recorder) OnEvent(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "event:"+string(event.Kind()))
	r.events = append(r.events, event)
}

func (r *recorder) OnStateUpdated(node *domain.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "state")
	r.states = append(r.states, node)
}

func (r *recorder) OnTreeChanged(root *domain.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "tree")
	r.changed = append(r.changed, root)
}

func (r *recorder) kinds() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind()
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls, r.events, r.logs, r.states, r.changed = nil, nil, nil, nil, nil
}

// panicker fails in every callback.
type panicker struct{}

func (panicker) OnLog(domain.LogEntry)       { panic("log boom") }
func (panicker) OnEvent(domain.Event)        { panic("event boom") }
func (panicker) OnStateUpdated(*domain.Node) { panic("state boom") }
func (panicker) OnTreeChanged(*domain.Node)  { panic("tree boom") }

func newWorkflow(t *testing.T, id string, opts ...workflow.Option) *workflow.Workflow {
	t.Helper()
	w, err := workflow.New(id, append([]workflow.Option{workflow.WithID(id)}, opts...)...)
	require.NoError(t, err)
	return w
}

func childIDs(w *workflow.Workflow) []string {
	var ids []string
	for _, c := range w.Children() {
		ids = append(ids, c.ID())
	}
	return ids
}

func nodeChildIDs(n *domain.Node) []string {
	var ids []string
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}
