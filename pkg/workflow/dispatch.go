package workflow

import (
	"fmt"
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// AddObserver registers obs on w. Only roots carry observers.
func (w *Workflow) AddObserver(obs ports.Observer) error {
	if obs == nil {
		return fmt.Errorf("add observer: observer is nil")
	}
	defer lockTrees(w)()

	if err := w.requireRoot("add observer"); err != nil {
		return err
	}
	w.observers = append(w.observers, obs)
	return nil
}

// RemoveObserver unregisters obs from w. Removing an unknown observer is a no-op.
func (w *Workflow) RemoveObserver(obs ports.Observer) error {
	defer lockTrees(w)()

	if err := w.requireRoot("remove observer"); err != nil {
		return err
	}
	if idx := slices.Index(w.observers, obs); idx >= 0 {
		w.observers = slices.Delete(w.observers, idx, idx+1)
	}
	return nil
}

// Observers returns a copy of the observers registered on w.
func (w *Workflow) Observers() []ports.Observer {
	defer lockTrees(w)()
	return slices.Clone(w.observers)
}

func (w *Workflow) requireRoot(op string) error {
	if w.parent == nil {
		return nil
	}
	return &domain.ValidationError{
		Kind:     domain.KindNotRoot,
		Op:       op,
		ParentID: w.parent.id,
		ChildID:  w.id,
		Msg:      fmt.Sprintf("observers can only be managed on a root workflow; %s has parent %s", w, w.parent),
	}
}

// EmitEvent records event on w and dispatches it to the observers of w's root.
func (w *Workflow) EmitEvent(event domain.Event) error {
	if event == nil {
		return fmt.Errorf("emit event: event is nil")
	}
	defer lockTrees(w)()
	return w.emitLocked(event)
}

// emitLocked records and dispatches event. The root is resolved first, so an
// IntegrityError leaves the node untouched.
func (w *Workflow) emitLocked(event domain.Event) error {
	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}
	w.deliverLocked(root, observers, event)
	return nil
}

// deliverLocked is the single dispatch point for events. Every observer gets
// OnEvent, and for structural events OnTreeChanged right after, each call
// isolated from the others. Callers resolve root before mutating anything.
func (w *Workflow) deliverLocked(root *Workflow, observers []ports.Observer, event domain.Event) {
	w.node.Events = append(w.node.Events, event)

	structural := event.Kind().IsStructural()
	for _, obs := range observers {
		root.safeCall(obs, "OnEvent", func() { obs.OnEvent(event) })
		if structural {
			root.safeCall(obs, "OnTreeChanged", func() { obs.OnTreeChanged(root.node) })
		}
	}
}

// rootObservers resolves the root and a snapshot of its observer list.
func (w *Workflow) rootObservers() (*Workflow, []ports.Observer, error) {
	root, err := w.root()
	if err != nil {
		return nil, nil, err
	}
	return root, slices.Clone(root.observers), nil
}

// notify delivers a non-event callback (logs, state updates) to observers
// under the same isolation as events.
func notify(root *Workflow, observers []ports.Observer, callback string, fn func(ports.Observer)) {
	for _, obs := range observers {
		root.safeCall(obs, callback, func() { fn(obs) })
	}
}

// safeCall runs one observer callback, turning a panic into a logged
// ObserverError.
func (w *Workflow) safeCall(obs ports.Observer, callback string, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause, ok := r.(error)
		if !ok {
			cause = fmt.Errorf("panic: %v", r)
		}
		oerr := &domain.ObserverError{
			Callback: callback,
			Observer: fmt.Sprintf("%T", obs),
			Cause:    cause,
		}
		w.logger.Error("Observer callback failed",
			"callback", callback,
			"observer", oerr.Observer,
			"err", oerr,
		)
	}()
	fn()
}
