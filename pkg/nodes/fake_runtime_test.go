package nodes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

type logLine struct {
	level domain.Level
	msg   string
}

type artifact struct {
	kind    string
	payload any
}

type published struct {
	topic   string
	payload any
}

// fakeRuntime records what a node does with its runtime.
type fakeRuntime struct {
	ctx       context.Context
	character domain.Character

	mu        sync.Mutex
	triggers  []domain.EventSource
	topics    []string
	published []published
	logs      []logLine
	artifacts []artifact
}

func newFakeRuntime(ctx context.Context) *fakeRuntime {
	return &fakeRuntime{ctx: ctx}
}

func (f *fakeRuntime) RunID() string { return "run-1" }
func (f *fakeRuntime) NodeID() string { return "node-1" }
func (f *fakeRuntime) Context() context.Context { return f.ctx }
func (f *fakeRuntime) Character() domain.Character { return f.character }
func (f *fakeRuntime) Logger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func (f *fakeRuntime) Trigger(source domain.EventSource, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, source)
}

func (f *fakeRuntime) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeRuntime) Publish(topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, payload})
	return nil
}

func (f *fakeRuntime) Log(level domain.Level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logLine{level, msg})
}

func (f *fakeRuntime) Emit(kind string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, artifact{kind, payload})
}

func (f *fakeRuntime) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}
