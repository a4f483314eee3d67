package memory_test

import (
	"context"
	"testing"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/memory"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunGraphStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	g := domain.Graph{
		ID:    "iso",
		Nodes: []domain.NodeDef{{ID: "a", Type: "text", Config: map[string]any{"text": "original"}}},
	}
	s := memory.NewStore(g)

	// Mutating the seed after saving must not affect the store
	g.Nodes[0].Config["text"] = "mutated"

	loaded, err := s.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "original", loaded.Nodes[0].Config["text"])

	// Nor does mutating a loaded copy
	loaded.Nodes[0].Config["text"] = "again"
	again, err := s.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Nodes[0].Config["text"])

	assert.Error(t, s.Save(ctx, domain.Graph{}))
}
