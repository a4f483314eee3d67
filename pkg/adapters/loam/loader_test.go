package loam

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/oboroge0/AITuberFlow-sub001/internal/testutils"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T, docs ...core.Document) *Loader {
	t.Helper()
	repo := testutils.LoamRepo(t, "", docs...)
	return New(loam.NewTypedRepository[GraphMetadata](repo))
}

func TestLoader_LoadGraphDocument(t *testing.T) {
	loader := setupRepo(t, core.Document{
		ID: "greeter.md",
		Content: `---
name: Greeter
character:
  name: Ai
  prompt: Greet every viewer.
nodes:
  - id: chat
    type: chat_listener
  - id: reply
    type: template
    config:
      template: "Hello {{.input}}!"
  - id: out
    type: log_output
connections:
  - from: chat.text
    to: reply.input
  - from: reply.text
    to: out.message
---
Greets chat viewers by name.`,
	})
	ctx := context.Background()

	g, err := loader.Load(ctx, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "greeter", g.ID)
	assert.Equal(t, "Greeter", g.Name)
	assert.Equal(t, "Ai", g.Character.Name)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "Hello {{.input}}!", g.Nodes[1].Config["template"])
	require.Len(t, g.Connections, 2)
	assert.Equal(t, domain.Endpoint{Node: "chat", Port: "text"}, g.Connections[0].From)

	desc, err := loader.Describe(ctx, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "Greets chat viewers by name.", desc)

	ids, err := loader.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter"}, ids)

	_, err = loader.Load(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestLoader_RejectsBadEndpoints(t *testing.T) {
	loader := setupRepo(t, core.Document{
		ID: "bad.md",
		Content: `---
nodes:
  - id: a
    type: text
connections:
  - from: nowhere
    to: a.trigger
---
`,
	})
	_, err := loader.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestNormalizeStrictNumbers(t *testing.T) {
	in := map[string]any{
		"interval": json.Number("2"),
		"ratio":    json.Number("0.5"),
		"nested":   map[string]any{"n": json.Number("7")},
		"list":     []any{json.Number("1"), "x"},
		"text":     "hi",
	}
	out := normalizeMap(in)
	assert.Equal(t, int64(2), out["interval"])
	assert.Equal(t, 0.5, out["ratio"])
	assert.Equal(t, map[string]any{"n": int64(7)}, out["nested"])
	assert.Equal(t, []any{int64(1), "x"}, out["list"])
	assert.Equal(t, "hi", out["text"])
	assert.Nil(t, normalizeMap(nil))
}

func TestLoader_ListDetectsDuplicateIDs(t *testing.T) {
	loader := setupRepo(t,
		core.Document{ID: "intro.md", Content: "---\nid: intro\nnodes: []\n---\n"},
		core.Document{ID: "opening.md", Content: "---\nid: intro\nnodes: []\n---\n"},
	)

	_, err := loader.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `graph "intro" is defined by both`)
}

func TestLoader_ListUsesFrontmatterID(t *testing.T) {
	loader := setupRepo(t,
		core.Document{ID: "opening.md", Content: "---\nid: show-opening\nnodes: []\n---\n"},
		core.Document{ID: "closing.md", Content: "---\nnodes: []\n---\n"},
	)
	ctx := context.Background()

	ids, err := loader.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"closing", "show-opening"}, ids)

	g, err := loader.Load(ctx, "opening")
	require.NoError(t, err)
	assert.Contains(t, ids, g.ID)

	byID, err := loader.Load(ctx, "show-opening")
	require.NoError(t, err)
	assert.Equal(t, "show-opening", byID.ID)
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "shows/opening", trimExtension("shows/opening.md"))
	assert.Equal(t, "plain", trimExtension("plain"))
}
