package ports

import (
	"context"
	"testing"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGraphStoreContract verifies that a GraphStore implementation honours the
// interface contract. Adapters call it from their own tests.
func RunGraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	graphID := "contract-graph-" + time.Now().Format("20060102150405")

	sample := func(id string) domain.Graph {
		return domain.Graph{
			ID:   id,
			Name: "contract",
			Nodes: []domain.NodeDef{
				{ID: "greet", Type: "text", Entry: true, Config: map[string]any{"text": "hello"}},
				{ID: "out", Type: "log_output"},
			},
			Connections: []domain.Connection{
				{From: domain.Endpoint{Node: "greet", Port: "text"}, To: domain.Endpoint{Node: "out", Port: "message"}},
			},
			Character: domain.Character{Name: "Ai", Prompt: "be kind"},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sample(graphID)))

		loaded, err := store.Load(ctx, graphID)
		require.NoError(t, err)
		assert.Equal(t, graphID, loaded.ID)
		assert.Equal(t, "contract", loaded.Name)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, "hello", loaded.Nodes[0].Config["text"])
		assert.True(t, loaded.Nodes[0].Entry)
		require.Len(t, loaded.Connections, 1)
		assert.Equal(t, "out", loaded.Connections[0].To.Node)
		assert.Equal(t, "Ai", loaded.Character.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+graphID)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := graphID + "-2"
		require.NoError(t, store.Save(ctx, sample(other)))
		defer func() { _ = store.Delete(ctx, other) }()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, graphID)
		assert.Contains(t, ids, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, graphID))
		_, err := store.Load(ctx, graphID)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})
}
