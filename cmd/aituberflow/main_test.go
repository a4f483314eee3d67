package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "aituberflow version ")
}

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir, "--backend", "file")
	require.NoError(t, err)
	assert.Contains(t, out, "create "+filepath.Join(dir, "hello.yaml"))

	out, err = execute(t, "validate", "hello", "--backend", "file", "--dir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `Graph "hello" is valid`)
}

func TestValidateReportsProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`id: broken
nodes:
  - id: out
    type: log_output
  - id: greet
    type: text
    config: {text: hi}
connections:
  - from: greet.nope
    to: out.message
`), 0o644))

	out, err := execute(t, "validate", path, "--backend", "memory", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, out, "unknown output port greet.nope")
}

func TestUnknownBackendIsRejected(t *testing.T) {
	_, err := execute(t, "nodes", "--backend", "sqlite")
	assert.Error(t, err)
}
