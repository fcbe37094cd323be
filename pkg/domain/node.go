package domain

import "fmt"

// Node is the data record mirroring a runtime workflow.
//
// The runtime tree owns its nodes; Parent is a non-owning back-reference and is
// never serialized. Children are kept in attach order.
type Node struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`

	Parent   *Node   `json:"-"`
	Children []*Node `json:"children"`

	// Logs and Events are append-only.
	Logs   []LogEntry `json:"logs,omitempty"`
	Events []Event    `json:"-"`

	// StateSnapshot holds the last captured observed state, if any.
	StateSnapshot map[string]any `json:"stateSnapshot,omitempty"`
}

// NewNode creates a detached node record in the pending state.
func NewNode(id, name string) *Node {
	return &Node{
		ID:       id,
		Name:     name,
		Status:   StatusPending,
		Children: []*Node{},
	}
}

// Label renders the node for error messages and logs.
func (n *Node) Label() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q (%s)", n.Name, n.ID)
}

// ParentID returns the id of the parent record, or "" for a root.
func (n *Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return n.Parent.ID
}

// IndexOfChild returns the position of c in Children, or -1.
func (n *Node) IndexOfChild(c *Node) int {
	for i, child := range n.Children {
		if child == c {
			return i
		}
	}
	return -1
}

// Walk visits the subtree rooted at n in pre-order (children in attach order)
// using an explicit stack. Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			return
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Size counts the nodes in the subtree rooted at n.
func (n *Node) Size() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// NodeView is the serializable projection of a subtree: no parent pointer and
// no event list, so it can never recurse back into itself.
type NodeView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StateSnapshot map[string]any `json:"stateSnapshot,omitempty"`
	Logs          []LogEntry     `json:"logs,omitempty"`
	Children      []*NodeView    `json:"children"`
}

// View projects the subtree rooted at n into a NodeView tree.
func (n *Node) View() *NodeView {
	if n == nil {
		return nil
	}
	root := newView(n)
	type pair struct {
		node *Node
		view *NodeView
	}
	stack := []pair{{n, root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur.view.Children = make([]*NodeView, len(cur.node.Children))
		for i, child := range cur.node.Children {
			v := newView(child)
			cur.view.Children[i] = v
			stack = append(stack, pair{child, v})
		}
	}
	return root
}

func newView(n *Node) *NodeView {
	v := &NodeView{
		ID:            n.ID,
		Name:          n.Name,
		Status:        n.Status,
		StateSnapshot: n.StateSnapshot,
	}
	if len(n.Logs) > 0 {
		v.Logs = append([]LogEntry(nil), n.Logs...)
	}
	return v
}

// Node rebuilds a detached node tree from a view, restoring Parent links.
func (v *NodeView) Node() *Node {
	if v == nil {
		return nil
	}
	root := fromView(v)
	type pair struct {
		view *NodeView
		node *Node
	}
	stack := []pair{{v, root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, childView := range cur.view.Children {
			child := fromView(childView)
			child.Parent = cur.node
			cur.node.Children = append(cur.node.Children, child)
			stack = append(stack, pair{childView, child})
		}
	}
	return root
}

func fromView(v *NodeView) *Node {
	n := NewNode(v.ID, v.Name)
	n.Status = v.Status
	n.StateSnapshot = v.StateSnapshot
	n.Logs = v.Logs
	return n
}
