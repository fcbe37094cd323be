package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func view(id, name string, status domain.Status, children ...*domain.NodeView) *domain.NodeView {
	return &domain.NodeView{ID: id, Name: name, Status: status, Children: children}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		root     *domain.NodeView
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Root Shape",
			root: view("r", "r", domain.StatusPending),
			contains: []string{
				`r(("r"))`,
			},
		},
		{
			name: "Failed Child Shape",
			root: view("r", "r", domain.StatusRunning, view("c", "c", domain.StatusFailed)),
			contains: []string{
				`c{{"c"}}`,
				"r --> c",
			},
		},
		{
			name: "ID Sanitization",
			root: view("r", "r", domain.StatusPending,
				view("path/to/file.md", "path/to/file.md", domain.StatusPending),
				view("hyphen-ated", "hyphen-ated", domain.StatusPending),
			),
			contains: []string{
				`path_to_file_md["path/to/file.md"]`,
				`hyphen_ated["hyphen-ated"]`,
				"r --> hyphen_ated",
			},
		},
		{
			name: "Name And ID Label",
			root: view("r", `say "hi"`, domain.StatusPending),
			contains: []string{
				`r(("say 'hi' <br/> r"))`,
			},
		},
		{
			name: "Status Classes",
			root: view("r", "r", domain.StatusRunning,
				view("a", "a", domain.StatusCompleted),
				view("b", "b", domain.StatusCompleted),
			),
			contains: []string{
				"classDef completed",
				"class a,b completed;",
				"class r running;",
			},
			excludes: []string{
				"classDef failed",
			},
		},
		{
			name: "Overlay",
			root: view("r", "r", domain.StatusPending, view("a", "a", domain.StatusPending)),
			overlay: &graph.GraphOverlay{
				Path:        []string{"r", "a", "a"},
				CurrentNode: "a",
			},
			contains: []string{
				"class r onpath;",
				"class a current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.root, tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
			if tt.overlay != nil {
				assert.Equal(t, 1, strings.Count(got, "class a onpath;"), "path ids are deduplicated")
			}
		})
	}
}

func TestGenerateMermaid_EdgeOrder(t *testing.T) {
	root := view("r", "r", domain.StatusPending,
		view("a", "a", domain.StatusPending, view("a1", "a1", domain.StatusPending)),
		view("b", "b", domain.StatusPending),
	)

	got := graph.GenerateMermaid(root, nil)

	ra := strings.Index(got, "r --> a\n")
	aa1 := strings.Index(got, "a --> a1")
	rb := strings.Index(got, "r --> b")
	assert.True(t, ra >= 0 && aa1 > ra && rb > aa1, "edges follow pre-order:\n%s", got)
}

func TestGenerateMermaid_Nil(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}
