package nodes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptor(t *testing.T, nodeType string) registry.Descriptor {
	t.Helper()
	for _, d := range Descriptors() {
		if d.Type == nodeType {
			return d
		}
	}
	t.Fatalf("no descriptor for %s", nodeType)
	return registry.Descriptor{}
}

func TestRegisterAllTypes(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, Register(reg))

	for _, d := range Descriptors() {
		n, desc, err := reg.Instantiate(d.Type)
		require.NoError(t, err, d.Type)
		assert.NotNil(t, n)
		assert.Equal(t, d.Kind, desc.Kind)
	}
	assert.Error(t, Register(reg), "second registration collides")
}

func TestTimerTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := newFakeRuntime(ctx)

	timer := &Timer{}
	require.NoError(t, timer.Configure(map[string]any{"interval": 0.02, "immediate": true}))
	require.NoError(t, timer.Setup(ctx, rt))

	assert.Eventually(t, func() bool { return rt.triggerCount() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, timer.Teardown(ctx))

	settled := rt.triggerCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, rt.triggerCount(), "no ticks after teardown")

	out, err := timer.OnEvent(ctx, domain.NodeEvent{Source: domain.SourceTimer})
	require.NoError(t, err)
	assert.Equal(t, 1, out["tick"])

	out, err = timer.OnEvent(ctx, domain.NodeEvent{Source: domain.SourceInject, Payload: "manual"})
	require.NoError(t, err)
	assert.Equal(t, 2, out["tick"])
	assert.Equal(t, "manual", out["payload"])
}

func TestChatListener(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime(ctx)

	cl := &ChatListener{}
	require.NoError(t, cl.Configure(map[string]any{}))
	require.NoError(t, cl.Setup(ctx, rt))
	assert.Equal(t, []string{DefaultChatTopic}, rt.topics)

	out, err := cl.OnEvent(ctx, domain.NodeEvent{Source: domain.SourceBus, Payload: map[string]any{"text": "hello", "author": "viewer"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"])
	assert.Equal(t, "viewer", out["user"])

	out, err = cl.OnEvent(ctx, domain.NodeEvent{Source: domain.SourceInject, Payload: "   "})
	require.NoError(t, err)
	assert.Nil(t, out, "blank messages are ignored")

	_, err = cl.OnEvent(ctx, domain.NodeEvent{Payload: 42})
	assert.Error(t, err)
}

func TestTextAndTemplate(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime(ctx)
	rt.character = domain.Character{Name: "Ai"}

	text := &Text{}
	require.NoError(t, text.Configure(map[string]any{"text": "hi"}))
	out, err := text.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out["text"])

	tmpl := &Template{}
	require.NoError(t, tmpl.Configure(map[string]any{"template": "{{.character.name}} heard {{.user}}: {{.text}}"}))
	require.NoError(t, tmpl.Setup(ctx, rt))
	out, err = tmpl.Execute(ctx, ports.Inputs{"input": map[string]any{"user": "bob", "text": "yo"}})
	require.NoError(t, err)
	assert.Equal(t, "Ai heard bob: yo", out["text"])

	assert.Error(t, (&Template{}).Configure(map[string]any{"template": "{{.broken"}))
}

func TestOutputNodes(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime(ctx)
	rt.character = domain.Character{Name: "Ai"}

	lo := &LogOutput{}
	require.NoError(t, lo.Configure(map[string]any{"level": "warning", "prefix": "> "}))
	require.NoError(t, lo.Setup(ctx, rt))
	_, err := lo.Execute(ctx, ports.Inputs{"message": map[string]any{"a": 1}})
	require.NoError(t, err)
	require.Len(t, rt.logs, 1)
	assert.Equal(t, domain.LevelWarn, rt.logs[0].level)
	assert.Equal(t, `> {"a":1}`, rt.logs[0].msg)

	pub := &Publish{}
	require.NoError(t, pub.Configure(map[string]any{"topic": "chat.message"}))
	require.NoError(t, pub.Setup(ctx, rt))
	_, err = pub.Execute(ctx, ports.Inputs{"payload": "again"})
	require.NoError(t, err)
	assert.Equal(t, []published{{"chat.message", "again"}}, rt.published)

	sub := &Subtitle{}
	require.NoError(t, sub.Configure(map[string]any{}))
	require.NoError(t, sub.Setup(ctx, rt))
	out, err := sub.Execute(ctx, ports.Inputs{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"])

	av := &Avatar{}
	require.NoError(t, av.Configure(map[string]any{"motion": "wave"}))
	require.NoError(t, av.Setup(ctx, rt))
	_, err = av.Execute(ctx, ports.Inputs{"expression": "smile"})
	require.NoError(t, err)

	art := &Artifact{}
	assert.Error(t, art.Configure(map[string]any{"kind": ""}))
	require.NoError(t, art.Configure(map[string]any{"kind": "audio"}))
	require.NoError(t, art.Setup(ctx, rt))
	_, err = art.Execute(ctx, ports.Inputs{"data": []byte("RIFF")})
	require.NoError(t, err)

	require.Len(t, rt.artifacts, 3)
	assert.Equal(t, ArtifactSubtitle, rt.artifacts[0].kind)
	assert.Equal(t, map[string]any{"text": "hello", "speaker": "Ai"}, rt.artifacts[0].payload)
	assert.Equal(t, map[string]any{"expression": "smile", "motion": "wave"}, rt.artifacts[1].payload)
	assert.Equal(t, "audio", rt.artifacts[2].kind)
}

func TestLLMCallsChatCompletions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello, viewer!"}}]
		}`))
	}))
	defer srv.Close()
	t.Setenv("TEST_LLM_KEY", "test-key")

	ctx := context.Background()
	rt := newFakeRuntime(ctx)
	rt.character = domain.Character{Name: "Ai", Prompt: "Stay cheerful."}

	node := &LLM{}
	settings := map[string]any{"model": "test-model", "base_url": srv.URL, "api_key_env": "TEST_LLM_KEY", "temperature": 0.5}
	require.NoError(t, schema.Validate(descriptor(t, TypeLLM).Schema, settings))
	require.NoError(t, node.Configure(settings))
	require.NoError(t, node.Setup(ctx, rt))

	out, err := node.Execute(ctx, ports.Inputs{"prompt": "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, viewer!", out["reply"])

	assert.Equal(t, "test-model", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	system := msgs[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "You are Ai. Stay cheerful.")

	_, err = node.Execute(ctx, ports.Inputs{"prompt": ""})
	assert.Error(t, err)
}

func TestLLMSetupNeedsKey(t *testing.T) {
	node := &LLM{}
	require.NoError(t, node.Configure(map[string]any{"model": "m", "api_key_env": "AITUBERFLOW_TEST_UNSET_KEY"}))
	assert.Error(t, node.Setup(context.Background(), newFakeRuntime(context.Background())))
}

func TestLLMDefaultsFillMissingSettings(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, Register(reg, WithLLMDefaults(LLMDefaults{Model: "house-model", BaseURL: "http://llm.local/v1", APIKeyEnv: "HOUSE_KEY"})))

	n, _, err := reg.Instantiate(TypeLLM)
	require.NoError(t, err)
	llm := n.(*LLM)
	require.NoError(t, llm.Configure(map[string]any{}))
	assert.Equal(t, "house-model", llm.cfg.Model)
	assert.Equal(t, "http://llm.local/v1", llm.cfg.BaseURL)
	assert.Equal(t, "HOUSE_KEY", llm.cfg.APIKeyEnv)

	require.NoError(t, llm.Configure(map[string]any{"model": "override"}))
	assert.Equal(t, "override", llm.cfg.Model)

	assert.Error(t, (&LLM{}).Configure(map[string]any{}), "no model anywhere")
}

func TestSystemPrompt(t *testing.T) {
	p := systemPrompt(domain.Character{
		Name:        "Ai",
		Personality: map[string]any{"tone": "calm", "age": 17},
	}, "Answer briefly.")
	assert.Equal(t, "You are Ai.\nPersonality:\n- age: 17\n- tone: \"calm\"\nAnswer briefly.", p)
}
