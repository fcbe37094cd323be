package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workflow"
)

// Tree holds the workflows built from a scenario.
type Tree struct {
	Workflows map[string]*workflow.Workflow
	order     []string

	mu     sync.Mutex
	states map[string]map[string]any
	logger *slog.Logger
}

// Option configures Build.
type Option func(*Tree)

// WithLogger sets the logger handed to every workflow.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// Build creates one workflow per declared node and performs the declared
// attachments in file order.
func Build(s *Scenario, opts ...Option) (*Tree, error) {
	t := &Tree{
		Workflows: make(map[string]*workflow.Workflow, len(s.Nodes)),
		states:    make(map[string]map[string]any),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, n := range s.Nodes {
		id := n.ID
		wopts := []workflow.Option{
			workflow.WithID(id),
			workflow.WithLogger(t.logger),
			workflow.WithStateFunc(func(context.Context) map[string]any { return t.state(id) }),
		}
		if n.Parent != "" {
			wopts = append(wopts, workflow.WithParent(t.Workflows[n.Parent]))
		}
		w, err := workflow.New(n.Name, wopts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build node %q: %w", id, err)
		}
		t.Workflows[id] = w
		t.order = append(t.order, id)
	}
	return t, nil
}

func (t *Tree) state(id string) map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.states[id])
}

func (t *Tree) setState(id string, state map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[id] = maps.Clone(state)
}

// Roots returns the current root workflows in declaration order.
func (t *Tree) Roots() []*workflow.Workflow {
	var roots []*workflow.Workflow
	for _, id := range t.order {
		if w := t.Workflows[id]; w.IsRoot() {
			roots = append(roots, w)
		}
	}
	return roots
}

// First returns the first declared workflow, or nil for an empty scenario.
func (t *Tree) First() *workflow.Workflow {
	if len(t.order) == 0 {
		return nil
	}
	return t.Workflows[t.order[0]]
}

// Outcome is the result of one applied op.
type Outcome struct {
	Index    int
	Op       Op
	Err      error
	Expected bool
}

// OK reports whether the op behaved as the scenario declared.
func (o Outcome) OK() bool {
	if o.Op.ExpectError == "" {
		return o.Err == nil
	}
	return o.Expected
}

// ErrUnexpected is returned by Apply when an op did not behave as declared.
var ErrUnexpected = errors.New("scenario op did not behave as declared")

// Apply runs the ops in order. It stops at the first op whose outcome does not
// match its expect_error and returns the outcomes so far.
func (t *Tree) Apply(ctx context.Context, ops []Op) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		err := t.apply(ctx, op)
		out := Outcome{Index: i, Op: op, Err: err, Expected: matches(err, op.ExpectError)}
		outcomes = append(outcomes, out)

		if !out.OK() {
			if op.ExpectError != "" && err == nil {
				return outcomes, fmt.Errorf("%w: op %d (%s) succeeded, expected %q", ErrUnexpected, i, op, op.ExpectError)
			}
			return outcomes, fmt.Errorf("%w: op %d (%s): %w", ErrUnexpected, i, op, err)
		}
		t.logger.Debug("Applied op", "index", i, "op", op.String(), "err", err)
	}
	return outcomes, nil
}

func (t *Tree) apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpAttach:
		return t.Workflows[op.Parent].AttachChild(t.Workflows[op.Child])
	case OpDetach:
		return t.Workflows[op.Parent].DetachChild(t.Workflows[op.Child])
	case OpStatus:
		status, ok := domain.ParseStatus(op.Status)
		if !ok {
			return fmt.Errorf("invalid status %q", op.Status)
		}
		return t.Workflows[op.Node].SetStatus(status)
	case OpLog:
		level := slog.LevelInfo
		if op.Level != "" {
			var err error
			if level, err = logging.ParseLevel(op.Level); err != nil {
				return err
			}
		}
		args := make([]any, 0, len(op.Attrs)*2)
		for k, v := range op.Attrs {
			args = append(args, k, v)
		}
		return t.Workflows[op.Node].Log(level, op.Message, args...)
	case OpSnapshot:
		t.setState(op.Node, op.State)
		_, err := t.Workflows[op.Node].CaptureState(ctx)
		return err
	case OpStep:
		return t.Workflows[op.Node].RunStep(ctx, op.Step, func(context.Context) error {
			if op.Fail != "" {
				return errors.New(op.Fail)
			}
			return nil
		})
	}
	return fmt.Errorf("unknown op %q", op.Kind)
}

// matches reports whether err satisfies an expect_error value: either the
// validation kind (e.g. ParentConflict) or a substring of the message.
func matches(err error, expect string) bool {
	if err == nil || expect == "" {
		return false
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) && strings.EqualFold(string(verr.Kind), expect) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(expect))
}

// Run builds the scenario, lets attach register observers on the initial
// roots, then applies the ops.
func Run(ctx context.Context, s *Scenario, attach func(root *workflow.Workflow) error, opts ...Option) (*Tree, []Outcome, error) {
	t, err := Build(s, opts...)
	if err != nil {
		return nil, nil, err
	}
	if attach != nil {
		for _, root := range t.Roots() {
			if err := attach(root); err != nil {
				return t, nil, fmt.Errorf("failed to attach to %s: %w", root, err)
			}
		}
	}
	outcomes, err := t.Apply(ctx, s.Ops)
	return t, outcomes, err
}
