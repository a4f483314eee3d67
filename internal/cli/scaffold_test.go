package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/oboroge0/AITuberFlow-sub001/internal/testutils"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/file"
	loamadapter "github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scaffolded = []string{"ai-tuber", "chat-echo", "heartbeat", "hello"}

func TestScaffoldFileGraphsValidate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, Scaffold(context.Background(), dir, "file", false, &out))
	assert.Contains(t, out.String(), "create "+filepath.Join(dir, "hello.yaml"))

	store := file.New(dir)
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scaffolded, ids)

	app := newTestApp(t, testConfig(), WithAppSource(store))
	for _, id := range ids {
		g, err := app.ResolveGraph(context.Background(), id)
		require.NoError(t, err, id)
		assert.NoError(t, app.Service.Validate(g), id)
	}
}

func TestScaffoldKeepsExistingGraphs(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("id: hello\nnodes: []\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), custom, 0o644))

	var out bytes.Buffer
	require.NoError(t, Scaffold(context.Background(), dir, "file", false, &out))
	assert.Contains(t, out.String(), "skip   hello (exists)")

	data, err := os.ReadFile(filepath.Join(dir, "hello.yaml"))
	require.NoError(t, err)
	assert.Equal(t, custom, data)

	require.NoError(t, Scaffold(context.Background(), dir, "file", true, &out))
	data, err = os.ReadFile(filepath.Join(dir, "hello.yaml"))
	require.NoError(t, err)
	assert.NotEqual(t, custom, data)
}

func TestScaffoldLoamDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Scaffold(context.Background(), dir, "loam", false, &bytes.Buffer{}))

	repo := testutils.LoamRepo(t, dir)
	loader := loamadapter.New(loam.NewTypedRepository[loamadapter.GraphMetadata](repo))

	ctx := context.Background()
	g, err := loader.Load(ctx, "ai-tuber")
	require.NoError(t, err)
	assert.Equal(t, "Ai", g.Character.Name)
	assert.Len(t, g.Nodes, 6)

	desc, err := loader.Describe(ctx, "chat-echo")
	require.NoError(t, err)
	assert.Equal(t, descriptions["chat-echo"], desc)
}

func TestScaffoldRejectsOtherBackends(t *testing.T) {
	err := Scaffold(context.Background(), t.TempDir(), "redis", false, &bytes.Buffer{})
	assert.ErrorContains(t, err, `not "redis"`)
}
