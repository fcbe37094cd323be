package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/debugger"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const treeURI = "canopy://tree"

// Inspector defines the read side of the tree index exposed as MCP tools.
type Inspector interface {
	Lookup(id string) (*domain.Node, bool)
	Path(id string) ([]string, error)
	Root() *domain.Node
	Stats() debugger.Stats
	Read(fn func())
}

// NodeArgs selects a node by id.
type NodeArgs struct {
	ID string `json:"id"`
}

// NoArgs is used by tools without parameters.
type NoArgs struct{}

// NodeResponse is a node's subtree plus the id of its parent.
type NodeResponse struct {
	ParentID string           `json:"parentId,omitempty" jsonschema_description:"Id of the parent node, empty for the root"`
	Node     *domain.NodeView `json:"node" jsonschema_description:"The node and its subtree"`
}

// PathResponse lists ids from the root down to a node.
type PathResponse struct {
	Path []string `json:"path" jsonschema_description:"Node ids from the root to the requested node"`
}

// Server exposes a tree index as an MCP Server.
type Server struct {
	index     Inspector
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(index Inspector) *Server {
	s := &Server{
		index:     index,
		mcpServer: server.NewMCPServer("canopy-mcp", strings.TrimSpace(canopy.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: get_tree
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the whole workflow tree, starting at the root."),
		mcp.WithOutputSchema[domain.NodeView](),
	), mcp.NewStructuredToolHandler(s.handleGetTree))

	// TOOL: lookup_node
	s.mcpServer.AddTool(mcp.NewTool("lookup_node",
		mcp.WithDescription("Look up a node by id and return it with its subtree."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithOutputSchema[NodeResponse](),
	), mcp.NewStructuredToolHandler(s.handleLookupNode))

	// TOOL: node_path
	s.mcpServer.AddTool(mcp.NewTool("node_path",
		mcp.WithDescription("List the node ids from the root down to the given node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithOutputSchema[PathResponse](),
	), mcp.NewStructuredToolHandler(s.handleNodePath))

	// TOOL: index_stats
	s.mcpServer.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report the size and maintenance counters of the tree index."),
		mcp.WithOutputSchema[debugger.Stats](),
	), mcp.NewStructuredToolHandler(s.handleIndexStats))
}

func (s *Server) treeView() (*domain.NodeView, error) {
	var view *domain.NodeView
	s.index.Read(func() {
		view = s.index.Root().View()
	})
	if view == nil {
		return nil, errors.New("tree index is not initialized")
	}
	return view, nil
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest, args NoArgs) (domain.NodeView, error) {
	view, err := s.treeView()
	if err != nil {
		return domain.NodeView{}, err
	}
	return *view, nil
}

func (s *Server) handleLookupNode(ctx context.Context, request mcp.CallToolRequest, args NodeArgs) (NodeResponse, error) {
	if args.ID == "" {
		return NodeResponse{}, errors.New("id is required")
	}

	var resp *NodeResponse
	s.index.Read(func() {
		n, ok := s.index.Lookup(args.ID)
		if !ok {
			return
		}
		resp = &NodeResponse{ParentID: n.ParentID(), Node: n.View()}
	})
	if resp == nil {
		return NodeResponse{}, fmt.Errorf("%w: %s", debugger.ErrNodeNotFound, args.ID)
	}
	return *resp, nil
}

func (s *Server) handleNodePath(ctx context.Context, request mcp.CallToolRequest, args NodeArgs) (PathResponse, error) {
	if args.ID == "" {
		return PathResponse{}, errors.New("id is required")
	}

	var (
		path []string
		err  error
	)
	s.index.Read(func() {
		path, err = s.index.Path(args.ID)
	})
	if err != nil {
		return PathResponse{}, fmt.Errorf("path lookup failed: %w", err)
	}
	return PathResponse{Path: path}, nil
}

func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest, args NoArgs) (debugger.Stats, error) {
	return s.index.Stats(), nil
}

func (s *Server) registerResources() {
	// EXPOSE: canopy://tree
	s.mcpServer.AddResource(mcp.NewResource(treeURI, "Current Workflow Tree",
		mcp.WithMIMEType("application/json"),
	), s.readTree)
}

func (s *Server) readTree(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	view, err := s.treeView()
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      treeURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
