package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Path is highlighted, typically the ids from the root to CurrentNode.
	Path        []string
	CurrentNode string
}

// GenerateMermaid produces a Mermaid flowchart of the subtree rooted at root.
// It applies semantic styling:
// - Root: ((Circle))
// - Failed: {{Hexagon}}
// - Default: [Rectangle]
// Nodes are colored by status; overlay styles are appended when provided.
func GenerateMermaid(root *domain.NodeView, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	byStatus := make(map[domain.Status][]string)

	type item struct {
		view   *domain.NodeView
		parent string
	}
	stack := []item{{view: root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := cur.view

		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case cur.parent == "":
			opener, closer = "((", "))"
		case node.Status == domain.StatusFailed:
			opener, closer = "{{", "}}"
		}

		label := escapeLabel(node.Name)
		if node.Name != node.ID {
			label = fmt.Sprintf("%s <br/> %s", label, escapeLabel(node.ID))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
		if cur.parent != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", cur.parent, safeID))
		}
		if node.Status != "" {
			byStatus[node.Status] = append(byStatus[node.Status], safeID)
		}

		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{view: node.Children[i], parent: safeID})
		}
	}

	sb.WriteString("\n    %% Status Styles\n")
	for _, status := range statusOrder {
		ids := byStatus[status]
		if len(ids) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("    classDef %s %s;\n", status, statusStyles[status]))
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(ids, ","), status))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef onpath stroke:#01579b,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Path {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s onpath;\n", safeID))
			}
		}
		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

var statusOrder = []domain.Status{
	domain.StatusPending,
	domain.StatusRunning,
	domain.StatusCompleted,
	domain.StatusFailed,
	domain.StatusCancelled,
}

var statusStyles = map[domain.Status]string{
	domain.StatusPending:   "fill:#f5f5f5,stroke:#9e9e9e,color:#000",
	domain.StatusRunning:   "fill:#e1f5fe,stroke:#0288d1,color:#000",
	domain.StatusCompleted: "fill:#e8f5e9,stroke:#2e7d32,color:#000",
	domain.StatusFailed:    "fill:#ffebee,stroke:#c62828,color:#000",
	domain.StatusCancelled: "fill:#eceff1,stroke:#546e7a,stroke-dasharray:4,color:#000",
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
