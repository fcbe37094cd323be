package workflow

import (
	"fmt"
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
)

const (
	opAttach = "attach child"
	opDetach = "detach child"
)

// AttachChild makes child the last child of w.
//
// Preconditions are checked in order, and nothing is mutated unless all pass:
// child must not already be a child of w, must not have another parent, must
// not be w itself or one of its ancestors, and no id of its subtree may
// already be used in w's tree.
func (w *Workflow) AttachChild(child *Workflow) error {
	if child == nil {
		return fmt.Errorf("%s: child is nil", opAttach)
	}
	defer lockTrees(w, child)()

	if slices.Contains(w.children, child) {
		return &domain.ValidationError{
			Kind:     domain.KindDuplicateAttachment,
			Op:       opAttach,
			ParentID: w.id,
			ChildID:  child.id,
			Msg:      fmt.Sprintf("child already attached to this workflow: %s is already a child of %s", child, w),
		}
	}

	if child.parent != nil && child.parent != w {
		return &domain.ValidationError{
			Kind:     domain.KindParentConflict,
			Op:       opAttach,
			ParentID: w.id,
			ChildID:  child.id,
			Msg: fmt.Sprintf("workflow %s already has a parent %s; call DetachChild on %s before attaching it to %s",
				child, child.parent, child.parent, w),
		}
	}

	cyclic := child == w
	if !cyclic {
		var err error
		cyclic, err = w.isDescendantOf(child)
		if err != nil {
			return err
		}
	}
	if cyclic {
		return &domain.ValidationError{
			Kind:     domain.KindCircularReference,
			Op:       opAttach,
			ParentID: w.id,
			ChildID:  child.id,
			Msg:      fmt.Sprintf("attaching %s to %s would create a circular reference: %s is an ancestor of %s", child, w, child, w),
		}
	}

	if clash, owner := w.idCollision(child); clash != nil {
		return &domain.ValidationError{
			Kind:     domain.KindDuplicateID,
			Op:       opAttach,
			ParentID: w.id,
			ChildID:  child.id,
			Msg: fmt.Sprintf("attaching %s to %s would duplicate id %q: %s already belongs to the tree",
				child, w, clash.id, owner),
		}
	}

	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}

	if child.parent == nil {
		child.parent = w
		child.node.Parent = w.node
	}
	w.children = append(w.children, child)
	w.node.Children = append(w.node.Children, child.node)
	adoptLock(child, w.lock.Load())

	w.deliverLocked(root, observers, domain.NewChildAttached(w.id, child.node))

	// child's own observers stop receiving events until it is a root again.
	notifyOwnObservers(child)
	return nil
}

// DetachChild removes child from w. The detached subtree becomes a tree of
// its own, with child as root.
func (w *Workflow) DetachChild(child *Workflow) error {
	if child == nil {
		return fmt.Errorf("%s: child is nil", opDetach)
	}
	defer lockTrees(w, child)()

	idx := slices.Index(w.children, child)
	if idx < 0 {
		return &domain.ValidationError{
			Kind:     domain.KindNotAttached,
			Op:       opDetach,
			ParentID: w.id,
			ChildID:  child.id,
			Msg:      fmt.Sprintf("workflow %s is not attached to %s", child, w),
		}
	}

	root, observers, err := w.rootObservers()
	if err != nil {
		return err
	}

	// The subtree moves to a fresh lock, held until the event is delivered so
	// nobody can touch it while observers are still walking it.
	fresh := newTreeLock()
	fresh.mu.Lock()
	defer fresh.mu.Unlock()

	w.children = slices.Delete(w.children, idx, idx+1)
	if nodeIdx := w.node.IndexOfChild(child.node); nodeIdx >= 0 {
		w.node.Children = slices.Delete(w.node.Children, nodeIdx, nodeIdx+1)
	}
	child.parent = nil
	child.node.Parent = nil
	adoptLock(child, fresh)

	w.deliverLocked(root, observers, domain.NewChildDetached(w.id, child.id))

	// Observers registered on child while it was a root missed everything
	// that happened in between.
	notifyOwnObservers(child)
	return nil
}

// notifyOwnObservers tells the observers registered on w that w moved in or
// out of another tree. w.node.Parent tells them which.
func notifyOwnObservers(w *Workflow) {
	for _, obs := range slices.Clone(w.observers) {
		w.safeCall(obs, "OnTreeChanged", func() { obs.OnTreeChanged(w.node) })
	}
}

// idCollision returns the first workflow of child's subtree whose id is
// already used in w's tree, together with the workflow owning it.
func (w *Workflow) idCollision(child *Workflow) (clash, owner *Workflow) {
	ids := w.lock.Load().ids
	stack := []*Workflow{child}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if other, ok := ids[cur.id]; ok && other != cur {
			return cur, other
		}
		stack = append(stack, cur.children...)
	}
	return nil, nil
}

// Root returns the topmost ancestor of w (w itself for a root).
func (w *Workflow) Root() (*Workflow, error) {
	defer lockTrees(w)()
	return w.root()
}

// root walks parent links with a visited set; a revisit means the tree was
// corrupted outside this package. Cost O(depth).
func (w *Workflow) root() (*Workflow, error) {
	visited := make(map[*Workflow]struct{})
	cur := w
	for {
		if _, seen := visited[cur]; seen {
			return nil, integrityError("root lookup", cur)
		}
		visited[cur] = struct{}{}
		if cur.parent == nil {
			return cur, nil
		}
		cur = cur.parent
	}
}

// isDescendantOf reports whether ancestor appears on w's parent chain.
func (w *Workflow) isDescendantOf(ancestor *Workflow) (bool, error) {
	visited := make(map[*Workflow]struct{})
	for cur := w.parent; cur != nil; cur = cur.parent {
		if _, seen := visited[cur]; seen {
			return false, integrityError("descendant check", cur)
		}
		if cur == ancestor {
			return true, nil
		}
		visited[cur] = struct{}{}
	}
	return false, nil
}

func integrityError(op string, at *Workflow) error {
	return &domain.IntegrityError{
		Op:     op,
		NodeID: at.id,
		Msg:    "circular parent-child relationship detected",
	}
}
