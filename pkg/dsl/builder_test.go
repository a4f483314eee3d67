package dsl_test

import (
	"context"
	"testing"

	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/internal/logging"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	b := dsl.New("hello").Name("Hello").
		Character("Ai", "You are a cheerful streamer.").
		Trait("energy", "high")

	b.Add("greeting").Type("text").Set("text", "Hello, chat!").Pipe("text", "out.message")
	b.Add("out").Type("log_output").Config(map[string]any{"prefix": "> "})

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "hello", g.ID)
	assert.Equal(t, "Hello", g.Name)
	assert.Equal(t, "Ai", g.Character.Name)
	assert.Equal(t, "high", g.Character.Personality["energy"])
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "greeting", g.Nodes[0].ID)
	assert.Equal(t, "Hello, chat!", g.Nodes[0].Config["text"])
	assert.Equal(t, "> ", g.Nodes[1].Config["prefix"])
	assert.Equal(t, []domain.Connection{{
		From: domain.Endpoint{Node: "greeting", Port: "text"},
		To:   domain.Endpoint{Node: "out", Port: "message"},
	}}, g.Connections)
}

func TestBuilder_AddReturnsExistingNode(t *testing.T) {
	b := dsl.New("g")
	b.Add("a").Type("text")
	b.Add("a").Set("text", "x")

	g, err := b.Build()
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, domain.NodeDef{ID: "a", Type: "text", Config: map[string]any{"text": "x"}}, g.Nodes[0])
}

func TestBuilder_ReportsEveryProblem(t *testing.T) {
	b := dsl.New("bad")
	b.Add("untyped")
	b.Connect("nodot", "out.message")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node "untyped" has no type`)
	assert.Contains(t, err.Error(), "nodot")
}

func TestBuilder_StoreFeedsService(t *testing.T) {
	b := dsl.New("built")
	b.Add("greeting").Type("text").Set("text", "hi").Pipe("text", "out.message")
	b.Add("out").Type("log_output")

	store, err := b.Store()
	require.NoError(t, err)

	svc, err := aituberflow.New(
		aituberflow.WithLogger(logging.NewNop()),
		aituberflow.WithGraphSource(store),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	g, err := svc.LoadGraph(context.Background(), "built")
	require.NoError(t, err)
	assert.NoError(t, svc.Validate(g))
}
