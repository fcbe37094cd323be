package workflow

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
)

// Verify audits the subtree rooted at w: single parent, acyclicity, the
// mirror invariant between runtime and record trees, and the tree's id set.
// It is O(n) and meant for tests and diagnostics, not for the mutation path.
func (w *Workflow) Verify() error {
	defer lockTrees(w)()

	tree := w.lock.Load()
	visited := make(map[*Workflow]struct{})
	stack := []*Workflow{w}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[cur]; seen {
			return &domain.IntegrityError{Op: "verify", NodeID: cur.id, Msg: "workflow reachable twice (cycle or shared child)"}
		}
		visited[cur] = struct{}{}

		if cur.node.ID != cur.id {
			return mirrorError(cur, fmt.Sprintf("node id %q differs from workflow id", cur.node.ID))
		}
		if cur.lock.Load() != tree || tree.ids[cur.id] != cur {
			return mirrorError(cur, "workflow is not registered in its tree")
		}
		var wantParent *domain.Node
		if cur.parent != nil {
			wantParent = cur.parent.node
		}
		if cur.node.Parent != wantParent {
			return mirrorError(cur, "node parent does not mirror workflow parent")
		}
		if len(cur.node.Children) != len(cur.children) {
			return mirrorError(cur, fmt.Sprintf("node has %d children, workflow has %d", len(cur.node.Children), len(cur.children)))
		}
		for i, child := range cur.children {
			if cur.node.Children[i] != child.node {
				return mirrorError(cur, fmt.Sprintf("child %d does not mirror %s", i, child))
			}
			if child.parent != cur {
				return mirrorError(child, fmt.Sprintf("listed as child of %s but parent is %s", cur, child.parent))
			}
			stack = append(stack, child)
		}
	}
	if w.parent == nil && len(tree.ids) != len(visited) {
		return mirrorError(w, fmt.Sprintf("tree registers %d ids but %d workflows are reachable", len(tree.ids), len(visited)))
	}
	return nil
}

func mirrorError(w *Workflow, msg string) error {
	return &domain.IntegrityError{Op: "verify", NodeID: w.id, Msg: msg}
}
