package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/canopy/pkg/debugger"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *workflow.Workflow) {
	t.Helper()

	root, err := workflow.New("root", workflow.WithID("root"))
	require.NoError(t, err)
	child, err := workflow.New("child", workflow.WithID("child"), workflow.WithParent(root))
	require.NoError(t, err)
	_, err = workflow.New("leaf", workflow.WithID("leaf"), workflow.WithParent(child))
	require.NoError(t, err)

	idx, _, err := debugger.Attach(root)
	require.NoError(t, err)
	return NewServer(idx), root
}

func TestGetTree(t *testing.T) {
	s, _ := newTestServer(t)

	view, err := s.handleGetTree(context.Background(), mcp.CallToolRequest{}, NoArgs{})
	require.NoError(t, err)
	assert.Equal(t, "root", view.ID)
	require.Len(t, view.Children, 1)
	assert.Equal(t, "child", view.Children[0].ID)
}

func TestGetTree_Uninitialized(t *testing.T) {
	s := NewServer(debugger.NewIndex())

	_, err := s.handleGetTree(context.Background(), mcp.CallToolRequest{}, NoArgs{})
	assert.Error(t, err)
}

func TestLookupNode(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleLookupNode(ctx, mcp.CallToolRequest{}, NodeArgs{ID: "child"})
	require.NoError(t, err)
	assert.Equal(t, "root", resp.ParentID)
	assert.Equal(t, "child", resp.Node.ID)
	assert.Len(t, resp.Node.Children, 1)

	_, err = s.handleLookupNode(ctx, mcp.CallToolRequest{}, NodeArgs{ID: "ghost"})
	assert.ErrorIs(t, err, debugger.ErrNodeNotFound)

	_, err = s.handleLookupNode(ctx, mcp.CallToolRequest{}, NodeArgs{})
	assert.Error(t, err)
}

func TestNodePath(t *testing.T) {
	s, root := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleNodePath(ctx, mcp.CallToolRequest{}, NodeArgs{ID: "leaf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "child", "leaf"}, resp.Path)

	require.NoError(t, root.DetachChild(root.Children()[0]))
	_, err = s.handleNodePath(ctx, mcp.CallToolRequest{}, NodeArgs{ID: "leaf"})
	assert.ErrorIs(t, err, debugger.ErrNodeNotFound)
}

func TestIndexStats(t *testing.T) {
	s, _ := newTestServer(t)

	stats, err := s.handleIndexStats(context.Background(), mcp.CallToolRequest{}, NoArgs{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, debugger.Consistent, stats.State)
}

func TestReadTreeResource(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, root.SetStatus(domain.StatusRunning))

	contents, err := s.readTree(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, treeURI, text.URI)

	var view domain.NodeView
	require.NoError(t, json.Unmarshal([]byte(text.Text), &view))
	assert.Equal(t, domain.StatusRunning, view.Status)
}
