package tui_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *domain.NodeView {
	return &domain.NodeView{
		ID: "r", Name: "release", Status: domain.StatusRunning,
		Children: []*domain.NodeView{
			{
				ID: "b", Name: "build", Status: domain.StatusCompleted,
				Children: []*domain.NodeView{
					{ID: "c", Name: "compile", Status: domain.StatusCompleted},
				},
			},
			{
				ID: "t", Name: "test", Status: domain.StatusFailed,
				Logs: []domain.LogEntry{{Level: slog.LevelError, Message: "3 tests failed"}},
			},
		},
	}
}

func TestRenderTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tui.RenderTree(&buf, sample(), termenv.Ascii))

	want := strings.Join([]string{
		"release r [◐ running]",
		"├── build b [● completed]",
		"│   └── compile c [● completed]",
		"└── test t [✗ failed] (1 logs)",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestRenderTree_Nil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tui.RenderTree(&buf, nil, termenv.Ascii))
	assert.Empty(t, buf.String())
}

func TestMarkdown(t *testing.T) {
	md := tui.Markdown("release", sample())

	assert.True(t, strings.HasPrefix(md, "# release\n"))
	assert.Contains(t, md, "| completed | 2 |")
	assert.Contains(t, md, "| failed | 1 |")
	assert.Contains(t, md, "| **total** | 4 |")
	assert.NotContains(t, md, "| pending |")
	assert.Contains(t, md, "- **release** `r` running\n")
	assert.Contains(t, md, "\n  - **build** `b` completed\n")
	assert.Contains(t, md, "\n    - **compile** `c` completed\n")
	assert.Contains(t, md, "  - _error_ 3 tests failed")
}

func TestMarkdown_Empty(t *testing.T) {
	assert.Contains(t, tui.Markdown("x", nil), "_empty tree_")
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, tui.IsTerminal(&buf))
	assert.Equal(t, termenv.Ascii, tui.Profile(&buf))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, termenv.Ascii)
	assert.Contains(t, buf.String(), "|_|    |___/")
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "body")
}
