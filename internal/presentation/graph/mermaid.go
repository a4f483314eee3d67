package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
)

// StatusOverlay carries the live node statuses of a run.
type StatusOverlay struct {
	Statuses map[string]domain.Status
}

// OverlayFromSnapshot builds an overlay from a run snapshot.
func OverlayFromSnapshot(s domain.RunSnapshot) *StatusOverlay {
	o := &StatusOverlay{Statuses: make(map[string]domain.Status, len(s.Nodes))}
	for _, n := range s.Nodes {
		o.Statuses[n.NodeID] = n.Status
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for a workflow graph.
// It applies semantic styling when reg is given:
// - Entry: ((Circle))
// - Event nodes: {{Hexagon}}
// - AI nodes: [[Subroutine]]
// - Default: [Rectangle]
// Edges are labelled with "output → input" port names. Overlay statuses are
// rendered as classes (running, succeeded, failed, stopped).
func GenerateMermaid(g domain.Graph, reg *registry.Registry, overlay *StatusOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.ID)
		opener, closer := "[", "]"

		var desc registry.Descriptor
		if reg != nil {
			desc, _ = reg.Lookup(node.Type)
		}
		switch {
		case node.Entry:
			opener, closer = "((", "))"
		case desc.Kind == domain.KindEvent:
			opener, closer = "{{", "}}"
		case desc.Category == "ai":
			opener, closer = "[[", "]]"
		}

		label := node.ID
		if node.Name != "" {
			label = node.Name
		}
		label = strings.ReplaceAll(label, "\"", "'")
		fmt.Fprintf(&sb, "    %s%s\"%s<br/><i>%s</i>\"%s\n", safeID, opener, label, node.Type, closer)
	}

	for _, c := range g.Connections {
		fmt.Fprintf(&sb, "    %s -- \"%s → %s\" --> %s\n",
			sanitizeMermaidID(c.From.Node), c.From.Port, c.To.Port, sanitizeMermaidID(c.To.Node))
	}

	if overlay != nil && len(overlay.Statuses) > 0 {
		sb.WriteString("\n    %% Status Overlay\n")
		// Black text keeps labels readable on both light and dark themes.
		sb.WriteString("    classDef running fill:#fff9c4,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef succeeded fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef stopped fill:#eceff1,stroke:#546e7a,stroke-dasharray:4,color:#000;\n")

		ids := make([]string, 0, len(overlay.Statuses))
		for id := range overlay.Statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			status := overlay.Statuses[id]
			if status == domain.StatusIdle || status == "" {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), status)
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
