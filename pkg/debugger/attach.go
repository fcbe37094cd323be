package debugger

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/workflow"
)

// Attach builds an index for the tree containing w and subscribes it to the
// tree's root. The returned root is the workflow the index is registered on.
func Attach(w *workflow.Workflow) (*Index, *workflow.Workflow, error) {
	root, err := w.Root()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	idx := NewIndex()
	idx.guard = root.Read

	// Registering first means no event can slip between build and subscription:
	// whichever of Build or the first OnTreeChanged runs first does the build.
	if err := root.AddObserver(idx); err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe index: %w", err)
	}
	root.Read(func() {
		idx.Build(root.Node())
	})
	return idx, root, nil
}
