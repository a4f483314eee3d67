package graph_test

import (
	"strings"
	"testing"

	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/graph"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/nodes"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtins(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, nodes.Register(reg))
	return reg
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		graph    domain.Graph
		contains []string
	}{
		{
			name: "Entry Node Shape",
			graph: domain.Graph{Nodes: []domain.NodeDef{
				{ID: "greet", Type: "text", Entry: true},
			}},
			contains: []string{`greet(("greet<br/><i>text</i>"))`},
		},
		{
			name: "Event Node Shape",
			graph: domain.Graph{Nodes: []domain.NodeDef{
				{ID: "clock", Type: "timer"},
			}},
			contains: []string{`clock{{"clock<br/><i>timer</i>"}}`},
		},
		{
			name: "AI Node Shape",
			graph: domain.Graph{Nodes: []domain.NodeDef{
				{ID: "brain", Type: "llm", Name: `The "Brain"`},
			}},
			contains: []string{`brain[["The 'Brain'<br/><i>llm</i>"]]`},
		},
		{
			name: "ID Sanitization",
			graph: domain.Graph{Nodes: []domain.NodeDef{
				{ID: "stage.one", Type: "text"},
				{ID: "hyphen-ated", Type: "text"},
			}},
			contains: []string{
				`stage_one["stage.one<br/><i>text</i>"]`,
				`hyphen_ated["hyphen-ated<br/><i>text</i>"]`,
			},
		},
		{
			name: "Port Labels",
			graph: domain.Graph{
				Nodes: []domain.NodeDef{{ID: "a", Type: "text"}, {ID: "b", Type: "log_output"}},
				Connections: []domain.Connection{
					{From: domain.Endpoint{Node: "a", Port: "text"}, To: domain.Endpoint{Node: "b", Port: "message"}},
				},
			},
			contains: []string{`a -- "text → message" --> b`},
		},
	}

	reg := builtins(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.graph, reg, nil)
			assert.True(t, strings.HasPrefix(got, "graph LR\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "classDef")
		})
	}
}

func TestGenerateMermaidWithoutRegistry(t *testing.T) {
	got := graph.GenerateMermaid(domain.Graph{Nodes: []domain.NodeDef{{ID: "clock", Type: "timer"}}}, nil, nil)
	assert.Contains(t, got, `clock["clock<br/><i>timer</i>"]`)
}

func TestStatusOverlay(t *testing.T) {
	g := domain.Graph{Nodes: []domain.NodeDef{
		{ID: "a", Type: "text"}, {ID: "b", Type: "log_output"}, {ID: "c", Type: "log_output"},
	}}
	snap := domain.RunSnapshot{Nodes: []domain.NodeState{
		{NodeID: "b", Status: domain.StatusFailed},
		{NodeID: "a", Status: domain.StatusSucceeded},
		{NodeID: "c", Status: domain.StatusIdle},
	}}

	got := graph.GenerateMermaid(g, nil, graph.OverlayFromSnapshot(snap))
	assert.Contains(t, got, "classDef failed")
	assert.Contains(t, got, "class a succeeded;")
	assert.Contains(t, got, "class b failed;")
	assert.NotContains(t, got, "class c")
	assert.Less(t, strings.Index(got, "class a"), strings.Index(got, "class b"))
}
