package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/memory"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/nodes"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *observability.Recorder) {
	t.Helper()
	rec := observability.NewRecorder()
	g := domain.Graph{
		ID: "chat",
		Nodes: []domain.NodeDef{
			{ID: "chat", Type: nodes.TypeChatListener},
			{ID: "out", Type: nodes.TypeLogOutput},
		},
		Connections: []domain.Connection{
			{From: domain.Endpoint{Node: "chat", Port: "text"}, To: domain.Endpoint{Node: "out", Port: "message"}},
		},
	}
	svc, err := aituberflow.New(
		aituberflow.WithGraphSource(memory.NewStore(g)),
		aituberflow.WithObserver(rec),
		aituberflow.WithTimeouts(time.Second, time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return NewServer(svc, nil), rec
}

func waitLog(t *testing.T, rec *observability.Recorder, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := rec.WaitFor(ctx, func(ev domain.Event) bool {
		return ev.Type == domain.EventLog && ev.Message == msg
	})
	require.NoError(t, err, "waiting for log %q", msg)
}

func TestToolsDriveRun(t *testing.T) {
	s, rec := newTestServer(t)
	ctx := context.Background()

	snap, err := s.handleStartRun(ctx, mcp.CallToolRequest{}, map[string]interface{}{"graph_id": "chat"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, snap.State)

	ack, err := s.handleInject(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"run_id":  snap.RunID,
		"node_id": "chat",
		"data":    `{"user":"viewer","text":"hi"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, Ack{Status: "accepted", RunID: snap.RunID}, ack)
	waitLog(t, rec, "hi")

	ack, err = s.handlePublish(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"run_id":  snap.RunID,
		"topic":   nodes.DefaultChatTopic,
		"payload": `{"user":"viewer","text":"again"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "published", ack.Status)
	waitLog(t, rec, "again")

	status, err := s.handleRunStatus(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": snap.RunID})
	require.NoError(t, err)
	assert.Len(t, status.Nodes, 2)

	stopped, err := s.handleStopRun(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": snap.RunID})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStopped, stopped.State)
}

func TestToolErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStartRun(ctx, mcp.CallToolRequest{}, map[string]interface{}{"graph_id": "missing"})
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = s.handleRunStatus(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": "nope"})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = s.handleInject(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": "nope", "node_id": "chat", "data": "x"})
	assert.Error(t, err)
}

func TestDecodeArg(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1.0}, decodeArg(`{"a":1}`))
	assert.Equal(t, "plain text", decodeArg("plain text"))
	assert.Equal(t, 3.0, decodeArg("3"))
	assert.Equal(t, 7, decodeArg(7))
}

func TestRunIDFromURI(t *testing.T) {
	id, err := runIDFromURI("aituberflow://runs/abc-123/graph")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	for _, bad := range []string{"aituberflow://runs//graph", "aituberflow://node-types", "runs/abc/graph"} {
		_, err := runIDFromURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestListToolsOverProtocol(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"start_run", "stop_run", "inject_input", "publish_event",
		"run_status", "list_runs", "list_graphs", "list_node_types",
	}, names)
}

func TestNodeTypesResource(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"aituberflow://node-types"}}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Contents []struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Result.Contents, 1)
	assert.Contains(t, decoded.Result.Contents[0].Text, nodes.TypeChatListener)
}
