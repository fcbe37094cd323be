package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/debugger"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspector defines the read side of the tree index the API serves.
type Inspector interface {
	Lookup(id string) (*domain.Node, bool)
	Path(id string) ([]string, error)
	Root() *domain.Node
	Stats() debugger.Stats
	Read(fn func())
}

// Server serves the debugger API for one indexed tree.
type Server struct {
	Index    Inspector
	Trail    ports.TrailSink
	Streams  *observability.Broadcaster
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Option configures the Server built by NewHandler.
type Option func(*Server)

// WithTrail enables GET /trail backed by sink.
func WithTrail(sink ports.TrailSink) Option {
	return func(s *Server) {
		s.Trail = sink
	}
}

// WithStreams enables GET /events backed by the broadcaster.
func WithStreams(b *observability.Broadcaster) Option {
	return func(s *Server) {
		s.Streams = b
	}
}

// WithGatherer exposes g on GET /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the index.
func NewHandler(index Inspector, opts ...Option) http.Handler {
	server := &Server{
		Index:    index,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/tree", server.GetTree)
	r.Get("/nodes/{id}", server.GetNode)
	r.Get("/nodes/{id}/path", server.GetPath)
	r.Get("/stats", server.GetStats)
	r.Get("/trail", server.GetTrail)
	r.Get("/events", server.SubscribeEvents)
	r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NodeResponse is a node's subtree plus the id of its parent.
type NodeResponse struct {
	ParentID string `json:"parentId,omitempty"`
	*domain.NodeView
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"app":     "canopy-http",
		"version": strings.TrimSpace(canopy.Version),
	})
}

// GetTree handles the GET /tree request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	var view *domain.NodeView
	s.Index.Read(func() {
		view = s.Index.Root().View()
	})
	if view == nil {
		http.Error(w, "Index not initialized", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, view)
}

// GetNode handles the GET /nodes/{id} request.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var resp *NodeResponse
	s.Index.Read(func() {
		n, ok := s.Index.Lookup(id)
		if !ok {
			return
		}
		resp = &NodeResponse{ParentID: n.ParentID(), NodeView: n.View()}
	})
	if resp == nil {
		http.Error(w, fmt.Sprintf("Node %q not found", id), http.StatusNotFound)
		return
	}
	s.writeJSON(w, resp)
}

// GetPath handles the GET /nodes/{id}/path request.
func (s *Server) GetPath(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		path []string
		err  error
	)
	s.Index.Read(func() {
		path, err = s.Index.Path(id)
	})
	if err != nil {
		switch {
		case errors.Is(err, debugger.ErrNodeNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, fmt.Sprintf("Path error: %v", err), http.StatusInternalServerError)
			s.Logger.Error("Path lookup failed", "id", id, "err", err)
		}
		return
	}
	s.writeJSON(w, map[string][]string{"path": path})
}

// GetStats handles the GET /stats request.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.Index.Stats())
}

// GetTrail handles the GET /trail?n= request.
func (s *Server) GetTrail(w http.ResponseWriter, r *http.Request) {
	if s.Trail == nil {
		http.Error(w, "Trail not configured", http.StatusNotFound)
		return
	}

	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "Invalid n: expected a non-negative integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	rootID := s.Index.Stats().RootID
	entries, err := s.Trail.Recent(r.Context(), rootID, n)
	if err != nil {
		http.Error(w, fmt.Sprintf("Trail error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("Trail read failed", "root", rootID, "err", err)
		return
	}

	events := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		events[i] = e
	}
	s.writeJSON(w, map[string]any{"root": rootID, "events": events})
}

// SubscribeEvents handles the GET /events request (SSE). The optional types
// query parameter is a comma separated list of event types to receive.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.Streams == nil {
		http.Error(w, "Event stream not configured", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var types []domain.EventType
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			types = append(types, domain.EventType(strings.TrimSpace(t)))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(types...)
	defer cancel()

	s.Logger.Info("SSE: Client subscribed", "types", types)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
