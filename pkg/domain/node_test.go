package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(parent, child *Node) {
	child.Parent = parent
	parent.Children = append(parent.Children, child)
}

func sampleTree() *Node {
	r := NewNode("r", "root")
	a := NewNode("a", "alpha")
	b := NewNode("b", "beta")
	a1 := NewNode("a1", "alpha-1")
	link(r, a)
	link(r, b)
	link(a, a1)
	return r
}

func TestNode_WalkPreOrder(t *testing.T) {
	var ids []string
	sampleTree().Walk(func(n *Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	assert.Equal(t, []string{"r", "a", "a1", "b"}, ids)
}

func TestNode_WalkStops(t *testing.T) {
	var ids []string
	sampleTree().Walk(func(n *Node) bool {
		ids = append(ids, n.ID)
		return n.ID != "a"
	})
	assert.Equal(t, []string{"r", "a"}, ids)
}

func TestNode_SizeDeep(t *testing.T) {
	root := NewNode("n0", "n0")
	cur := root
	for i := 1; i < 5000; i++ {
		next := NewNode(fmt.Sprintf("n%d", i), "n")
		link(cur, next)
		cur = next
	}
	assert.Equal(t, 5000, root.Size())

	view := root.View()
	back := view.Node()
	assert.Equal(t, 5000, back.Size())
}

func TestNode_Helpers(t *testing.T) {
	r := sampleTree()
	a := r.Children[0]

	assert.Equal(t, "", r.ParentID())
	assert.Equal(t, "r", a.ParentID())
	assert.Equal(t, 1, r.IndexOfChild(r.Children[1]))
	assert.Equal(t, -1, r.IndexOfChild(NewNode("x", "x")))
	assert.Equal(t, `"alpha" (a)`, a.Label())
	assert.Equal(t, "<nil>", (*Node)(nil).Label())
}

func TestNodeView_RoundTripRestoresParents(t *testing.T) {
	r := sampleTree()
	r.Children[1].Status = StatusRunning
	r.Children[1].StateSnapshot = map[string]any{"k": "v"}

	back := r.View().Node()

	require.Len(t, back.Children, 2)
	assert.Nil(t, back.Parent)
	assert.Same(t, back, back.Children[0].Parent)
	assert.Same(t, back.Children[0], back.Children[0].Children[0].Parent)
	assert.Equal(t, StatusRunning, back.Children[1].Status)
	assert.Equal(t, "v", back.Children[1].StateSnapshot["k"])
	assert.Equal(t, r.View(), back.View())
}

func TestNodeView_LeafChildrenNotNil(t *testing.T) {
	v := NewNode("x", "x").View()
	assert.NotNil(t, v.Children)
	assert.Nil(t, (*Node)(nil).View())
	assert.Nil(t, (*NodeView)(nil).Node())
}

func TestStatus(t *testing.T) {
	s, ok := ParseStatus("completed")
	require.True(t, ok)
	assert.True(t, s.IsTerminal())

	s, ok = ParseStatus("running")
	require.True(t, ok)
	assert.False(t, s.IsTerminal())

	_, ok = ParseStatus("bogus")
	assert.False(t, ok)
}
