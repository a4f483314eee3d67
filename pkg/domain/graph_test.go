package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("greeter.text")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Node: "greeter", Port: "text"}, ep)

	ep, err = ParseEndpoint("stage.one.out")
	require.NoError(t, err)
	assert.Equal(t, "stage.one", ep.Node)
	assert.Equal(t, "out", ep.Port)

	for _, bad := range []string{"", "nodot", ".port", "node."} {
		_, err := ParseEndpoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestGraphCloneIsDeep(t *testing.T) {
	g := Graph{
		ID: "g",
		Nodes: []NodeDef{
			{ID: "a", Type: "text", Config: map[string]any{"text": "hi", "nested": map[string]any{"k": 1}}},
		},
		Connections: []Connection{{From: Endpoint{"a", "text"}, To: Endpoint{"b", "message"}}},
		Character:   Character{Name: "Ai", Personality: map[string]any{"tone": "calm"}},
	}

	c := g.Clone()
	c.Nodes[0].Config["text"] = "changed"
	c.Nodes[0].Config["nested"].(map[string]any)["k"] = 2
	c.Connections[0].To.Node = "z"
	c.Character.Personality["tone"] = "loud"

	assert.Equal(t, "hi", g.Nodes[0].Config["text"])
	assert.Equal(t, 1, g.Nodes[0].Config["nested"].(map[string]any)["k"])
	assert.Equal(t, "b", g.Connections[0].To.Node)
	assert.Equal(t, "calm", g.Character.Personality["tone"])
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusIdle, StatusRunning))
	assert.True(t, CanTransition(StatusRunning, StatusSucceeded))
	assert.True(t, CanTransition(StatusRunning, StatusStopped))
	assert.False(t, CanTransition(StatusStopped, StatusRunning))
	assert.False(t, CanTransition(StatusSucceeded, StatusFailed))
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
}

func TestGraphValidationErrorUnwraps(t *testing.T) {
	err := error(&GraphValidationError{
		GraphID: "g",
		Problems: []error{
			&UnknownNodeTypeError{NodeID: "a", Type: "nope"},
			&CycleError{Nodes: []string{"x", "y"}},
		},
	})

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"x", "y"}, cycle.Nodes)
	assert.Contains(t, err.Error(), "2 problems")
}

func TestEndpointUnmarshalJSON(t *testing.T) {
	var c Connection
	require.NoError(t, json.Unmarshal([]byte(`{"from":"greet.text","to":{"node":"out","port":"message"}}`), &c))
	assert.Equal(t, Endpoint{Node: "greet", Port: "text"}, c.From)
	assert.Equal(t, Endpoint{Node: "out", Port: "message"}, c.To)

	assert.Error(t, json.Unmarshal([]byte(`{"from":"nodot","to":"a.b"}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"from":{"node":"a","pot":"b"},"to":"a.b"}`), &c))
}
