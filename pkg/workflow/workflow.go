package workflow

import (
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/google/uuid"
)

// Workflow is a node of the runtime tree. It exclusively owns its domain.Node
// record and its children; parent is a non-owning back-reference.
type Workflow struct {
	id   string
	name string

	parent   *Workflow
	children []*Workflow
	node     *domain.Node
	status   domain.Status

	// observers is only consulted while parent == nil.
	observers []ports.Observer

	lock      atomic.Pointer[treeLock]
	logger    *slog.Logger
	stateFunc ports.StateFunc
}

// Option defines a functional option for configuring a Workflow.
type Option func(*config)

type config struct {
	id        string
	parent    *Workflow
	logger    *slog.Logger
	stateFunc ports.StateFunc
	observers []ports.Observer
}

// WithID sets an explicit id instead of a generated UUID. Ids must be unique
// within a tree; AttachChild rejects a subtree whose ids collide.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithParent attaches the new workflow to parent as part of construction.
func WithParent(parent *Workflow) Option {
	return func(c *config) {
		c.parent = parent
	}
}

// WithLogger sets the structured logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStateFunc sets the collaborator queried by CaptureState.
func WithStateFunc(fn ports.StateFunc) Option {
	return func(c *config) {
		c.stateFunc = fn
	}
}

// WithObservers registers observers on the new workflow. They only receive
// callbacks while the workflow is a root.
func WithObservers(obs ...ports.Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, obs...)
	}
}

// New creates a standalone workflow. If WithParent is given the workflow is
// attached before New returns, and the attach error (if any) is returned.
func New(name string, opts ...Option) (*Workflow, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	w := &Workflow{
		id:        cfg.id,
		name:      name,
		children:  []*Workflow{},
		node:      domain.NewNode(cfg.id, name),
		status:    domain.StatusPending,
		logger:    cfg.logger.With("workflow", cfg.id),
		stateFunc: cfg.stateFunc,
	}
	adoptLock(w, newTreeLock())

	for _, obs := range cfg.observers {
		if obs != nil {
			w.observers = append(w.observers, obs)
		}
	}

	if cfg.parent != nil {
		if err := cfg.parent.AttachChild(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// ID returns the immutable id shared with the node record.
func (w *Workflow) ID() string { return w.id }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Node returns the mirrored record. Reading it concurrently with mutations
// must go through Read.
func (w *Workflow) Node() *domain.Node { return w.node }

// Parent returns the current parent, or nil for a root.
func (w *Workflow) Parent() *Workflow {
	defer lockTrees(w)()
	return w.parent
}

// IsRoot reports whether the workflow has no parent.
func (w *Workflow) IsRoot() bool {
	return w.Parent() == nil
}

// Children returns a copy of the children in attach order.
func (w *Workflow) Children() []*Workflow {
	defer lockTrees(w)()
	return append([]*Workflow(nil), w.children...)
}

// Status returns the lifecycle status.
func (w *Workflow) Status() domain.Status {
	defer lockTrees(w)()
	return w.status
}

// Logs returns a shallow copy of the node's log list.
func (w *Workflow) Logs() []domain.LogEntry {
	defer lockTrees(w)()
	return append([]domain.LogEntry(nil), w.node.Logs...)
}

// Events returns a shallow copy of the events emitted by this workflow.
func (w *Workflow) Events() []domain.Event {
	defer lockTrees(w)()
	return append([]domain.Event(nil), w.node.Events...)
}

// View returns a serializable projection of the subtree rooted at w.
func (w *Workflow) View() *domain.NodeView {
	defer lockTrees(w)()
	return w.node.View()
}

// Read runs fn while holding the tree lock, so fn may safely walk node
// records of this tree. fn must not call other Workflow methods.
func (w *Workflow) Read(fn func()) {
	defer lockTrees(w)()
	fn()
}

func (w *Workflow) String() string {
	return w.node.Label()
}
