package workflow

// IsDescendantOf exposes the ancestor walk used by AttachChild.
func (w *Workflow) IsDescendantOf(ancestor *Workflow) (bool, error) {
	defer lockTrees(w)()
	return w.isDescendantOf(ancestor)
}

// ForceParent links child under parent without any validation or event,
// simulating corruption from outside the engine.
func ForceParent(child, parent *Workflow) {
	child.parent = parent
	child.node.Parent = parent.node
}
