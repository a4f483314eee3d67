// Package testutils holds helpers shared by tests across packages.
package testutils

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// LoamRepo opens a loam repository in dir without versioning and saves docs
// into it. An empty dir means a fresh temp directory.
// It fails the test immediately on error.
func LoamRepo(t *testing.T, dir string, docs ...core.Document) core.Repository {
	t.Helper()

	if dir == "" {
		dir = t.TempDir()
	}
	absPath, err := filepath.Abs(dir)
	require.NoError(t, err, "Failed to get absolute path for repo dir")

	repo, err := loam.Init(absPath, loam.WithVersioning(false), loam.WithForceTemp(false))
	require.NoError(t, err, "Failed to init loam repo")

	ctx := context.Background()
	for _, doc := range docs {
		require.NoError(t, repo.Save(ctx, doc), doc.ID)
	}
	return repo
}
