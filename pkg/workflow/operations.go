package workflow

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Log appends a line to the node's log and forwards it to the root's
// observers. args are slog-style key/value pairs or slog.Attr values.
func (w *Workflow) Log(level slog.Level, msg string, args ...any) error {
	var attrs map[string]any
	if len(args) > 0 {
		r := slog.NewRecord(time.Time{}, level, msg, 0)
		r.Add(args...)
		attrs = make(map[string]any, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value.Resolve().Any()
			return true
		})
	}
	entry := domain.NewLogEntry(level, msg, attrs)

	defer lockTrees(w)()
	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}
	w.node.Logs = append(w.node.Logs, entry)
	notify(root, observers, "OnLog", func(obs ports.Observer) { obs.OnLog(entry) })
	return nil
}

// SetStatus updates the status of w and its record, then emits treeUpdated.
func (w *Workflow) SetStatus(status domain.Status) error {
	defer lockTrees(w)()
	return w.setStatusLocked(status)
}

func (w *Workflow) setStatusLocked(status domain.Status) error {
	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}

	w.status = status
	w.node.Status = status
	w.deliverLocked(root, observers, domain.NewTreeUpdated(root.node))
	return nil
}

// CaptureState stores the collaborator's observed state into the node's
// snapshot, notifies OnStateUpdated and emits stateSnapshot followed by
// treeUpdated. It returns the captured map.
func (w *Workflow) CaptureState(ctx context.Context) (map[string]any, error) {
	// The collaborator may be slow; it runs outside the tree lock.
	snapshot := w.observedState(ctx)

	defer lockTrees(w)()
	if err := w.captureLocked(snapshot); err != nil {
		return nil, err
	}
	return maps.Clone(snapshot), nil
}

func (w *Workflow) observedState(ctx context.Context) map[string]any {
	var state map[string]any
	if w.stateFunc != nil {
		state = w.stateFunc(ctx)
	}
	if state == nil {
		return map[string]any{}
	}
	return maps.Clone(state)
}

func (w *Workflow) captureLocked(snapshot map[string]any) error {
	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}

	w.node.StateSnapshot = snapshot
	notify(root, observers, "OnStateUpdated", func(obs ports.Observer) { obs.OnStateUpdated(w.node) })
	w.deliverLocked(root, observers, domain.NewStateSnapshot(w.node))
	w.deliverLocked(root, observers, domain.NewTreeUpdated(root.node))
	return nil
}

// StepFunc is the body of a step run through RunStep.
type StepFunc func(ctx context.Context) error

// RunStep brackets fn with stepStart/stepEnd events. When fn fails, the
// workflow is marked failed, its state is captured and an error event with a
// copy of its logs is emitted. fn runs outside the tree lock and is not retried.
func (w *Workflow) RunStep(ctx context.Context, step string, fn StepFunc) error {
	if err := w.EmitEvent(domain.NewStepStart(w.node, step)); err != nil {
		return err
	}

	start := time.Now()
	stepErr := fn(ctx)
	elapsed := time.Since(start)

	if err := w.EmitEvent(domain.NewStepEnd(w.node, step, elapsed, stepErr)); err != nil {
		return err
	}
	if stepErr == nil {
		return nil
	}

	snapshot := w.observedState(ctx)

	unlock := lockTrees(w)
	defer unlock()
	if err := w.setStatusLocked(domain.StatusFailed); err != nil {
		return err
	}
	if err := w.captureLocked(snapshot); err != nil {
		return err
	}
	logs := append([]domain.LogEntry(nil), w.node.Logs...)
	if err := w.emitLocked(domain.NewErrorEvent(w.node, stepErr, logs)); err != nil {
		return err
	}
	return stepErr
}
