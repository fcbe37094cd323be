package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
)

var statusColors = map[domain.Status]string{
	domain.StatusPending:   "#9ca3af",
	domain.StatusRunning:   "#38bdf8",
	domain.StatusCompleted: "#4ade80",
	domain.StatusFailed:    "#f87171",
	domain.StatusCancelled: "#fbbf24",
}

var statusIcons = map[domain.Status]string{
	domain.StatusPending:   "○",
	domain.StatusRunning:   "◐",
	domain.StatusCompleted: "●",
	domain.StatusFailed:    "✗",
	domain.StatusCancelled: "⊘",
}

type treeLine struct {
	view   *domain.NodeView
	prefix string
	last   bool
	root   bool
}

// walkLines visits the subtree in pre-order with the box-drawing prefix of
// each line.
func walkLines(root *domain.NodeView, fn func(treeLine)) {
	if root == nil {
		return
	}
	stack := []treeLine{{view: root, root: true}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)

		childPrefix := cur.prefix
		if !cur.root {
			if cur.last {
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
		}
		n := len(cur.view.Children)
		for i := n - 1; i >= 0; i-- {
			stack = append(stack, treeLine{
				view:   cur.view.Children[i],
				prefix: childPrefix,
				last:   i == n-1,
			})
		}
	}
}

// RenderTree writes the subtree as an indented tree, one node per line,
// colored by status.
func RenderTree(w io.Writer, root *domain.NodeView, p termenv.Profile) error {
	var err error
	walkLines(root, func(l treeLine) {
		if err != nil {
			return
		}
		branch := ""
		if !l.root {
			branch = "├── "
			if l.last {
				branch = "└── "
			}
		}

		status := p.String(fmt.Sprintf("%s %s", statusIcons[l.view.Status], l.view.Status)).
			Foreground(p.Color(statusColors[l.view.Status]))
		name := p.String(l.view.Name).Bold()
		line := fmt.Sprintf("%s%s%s %s [%s]", l.prefix, branch, name, p.String(l.view.ID).Faint(), status)
		if len(l.view.Logs) > 0 {
			line += fmt.Sprintf(" (%d logs)", len(l.view.Logs))
		}
		_, err = fmt.Fprintln(w, line)
	})
	return err
}

// Markdown renders a report of the subtree: a summary table plus the tree
// outline with each node's logs.
func Markdown(title string, root *domain.NodeView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	if root == nil {
		sb.WriteString("_empty tree_\n")
		return sb.String()
	}

	counts := make(map[domain.Status]int)
	total := 0
	walkLines(root, func(l treeLine) {
		counts[l.view.Status]++
		total++
	})

	sb.WriteString("| Status | Nodes |\n|---|---|\n")
	for _, status := range []domain.Status{
		domain.StatusPending, domain.StatusRunning, domain.StatusCompleted,
		domain.StatusFailed, domain.StatusCancelled,
	} {
		if counts[status] > 0 {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", status, counts[status]))
		}
	}
	sb.WriteString(fmt.Sprintf("| **total** | %d |\n\n", total))

	sb.WriteString("## Tree\n\n")
	depth := map[*domain.NodeView]int{root: 0}
	walkLines(root, func(l treeLine) {
		d := depth[l.view]
		for _, c := range l.view.Children {
			depth[c] = d + 1
		}
		indent := strings.Repeat("  ", d)
		sb.WriteString(fmt.Sprintf("%s- **%s** `%s` %s\n", indent, l.view.Name, l.view.ID, l.view.Status))
		for _, entry := range l.view.Logs {
			sb.WriteString(fmt.Sprintf("%s  - _%s_ %s\n", indent, strings.ToLower(entry.Level.String()), entry.Message))
		}
	})
	return sb.String()
}
