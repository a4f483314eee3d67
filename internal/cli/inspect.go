package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/graph"
	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/tui"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/file"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// describer is implemented by sources that keep a prose description next to
// each graph (the loam backend).
type describer interface {
	Describe(ctx context.Context, id string) (string, error)
}

// ResolveGraph loads ref either as a graph file path or as a graph ID of the
// configured source.
func (a *App) ResolveGraph(ctx context.Context, ref string) (domain.Graph, error) {
	if isGraphFile(ref) {
		return file.LoadFile(ref)
	}
	return a.Service.LoadGraph(ctx, ref)
}

func isGraphFile(ref string) bool {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml", ".json":
	default:
		return false
	}
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}

// Validate checks a graph and prints every problem found.
func Validate(ctx context.Context, app *App, ref string, w io.Writer) error {
	g, err := app.ResolveGraph(ctx, ref)
	if err != nil {
		return err
	}
	err = app.Service.Validate(g)

	var invalid *domain.GraphValidationError
	if errors.As(err, &invalid) {
		fmt.Fprintf(w, "Graph %q has %d problem(s):\n", g.ID, len(invalid.Problems))
		for _, p := range invalid.Problems {
			fmt.Fprintf(w, "  ✗ %v\n", p)
		}
		return fmt.Errorf("graph %q is invalid", g.ID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Graph %q is valid ✅ (%d nodes, %d connections)\n", g.ID, len(g.Nodes), len(g.Connections))
	return nil
}

// Mermaid prints the graph as a Mermaid flowchart.
func Mermaid(ctx context.Context, app *App, ref string, w io.Writer) error {
	g, err := app.ResolveGraph(ctx, ref)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, graph.GenerateMermaid(g, app.Service.Registry(), nil))
	return err
}

// Describe prints a markdown summary of a graph: its description, character,
// nodes and connections.
func Describe(ctx context.Context, app *App, ref string, w io.Writer) error {
	g, err := app.ResolveGraph(ctx, ref)
	if err != nil {
		return err
	}

	var b strings.Builder
	title := g.Name
	if title == "" {
		title = g.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if d, ok := app.Source.(describer); ok && !isGraphFile(ref) {
		if text, err := d.Describe(ctx, g.ID); err == nil && text != "" {
			fmt.Fprintf(&b, "%s\n\n", text)
		}
	}

	if g.Character.Name != "" || g.Character.Prompt != "" {
		fmt.Fprintf(&b, "## Character: %s\n\n", g.Character.Name)
		if g.Character.Prompt != "" {
			fmt.Fprintf(&b, "> %s\n\n", g.Character.Prompt)
		}
		keys := make([]string, 0, len(g.Character.Personality))
		for k := range g.Character.Personality {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %v\n", k, g.Character.Personality[k])
		}
		if len(keys) > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString("## Nodes\n\n| ID | Type | Kind | Settings |\n|---|---|---|---|\n")
	reg := app.Service.Registry()
	for _, n := range g.Nodes {
		kind := "?"
		if d, ok := reg.Lookup(n.Type); ok {
			kind = string(d.Kind)
		}
		id := n.ID
		if n.Entry {
			id += " (entry)"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", id, n.Type, kind, formatConfig(n.Config))
	}

	if len(g.Connections) > 0 {
		b.WriteString("\n## Connections\n\n")
		for _, c := range g.Connections {
			fmt.Fprintf(&b, "- `%s` → `%s`\n", c.From, c.To)
		}
	}
	return writeMarkdown(w, b.String())
}

// NodeTypes prints every registered node type with its ports.
func NodeTypes(app *App, w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Node types\n\n| Type | Kind | Category | Inputs | Outputs |\n|---|---|---|---|---|\n")
	for _, d := range app.Service.NodeTypes() {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n", d.Type, d.Kind, d.Category, formatPorts(d.Inputs), formatPorts(d.Outputs))
	}
	return writeMarkdown(w, b.String())
}

func formatPorts(list []domain.Port) string {
	if len(list) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(list))
	for _, p := range list {
		s := fmt.Sprintf("%s:%s", p.Name, p.Type)
		if p.Optional {
			s += "?"
		}
		if p.Streaming {
			s += "*"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func formatConfig(cfg map[string]any) string {
	if len(cfg) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := strings.ReplaceAll(fmt.Sprint(cfg[k]), "|", "\\|")
		v = strings.ReplaceAll(v, "\n", " ")
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}

// writeMarkdown renders md with glamour on a terminal and writes it raw
// otherwise.
func writeMarkdown(w io.Writer, md string) error {
	if tui.IsTerminal(w) {
		rendered, err := tui.NewRenderer(100)(md)
		if err == nil {
			md = rendered
		}
	}
	_, err := io.WriteString(w, md)
	return err
}
