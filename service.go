package aituberflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/internal/runtime"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/nodes"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoGraphStore is returned by graph operations when the service was built
// without a source, or with a read-only source for SaveGraph.
var ErrNoGraphStore = errors.New("no graph store configured")

// Run is one live execution of a graph.
type Run = runtime.Run

// StartOption tunes a single Start call.
type StartOption = runtime.StartOption

// FromNode restricts a run to the given node and everything downstream of it.
func FromNode(nodeID string) StartOption { return runtime.FromNode(nodeID) }

// WithRunObserver adds observers that only see the started run.
func WithRunObserver(o ...ports.Observer) StartOption { return runtime.WithRunObserver(o...) }

// Service is the high-level entry point: it owns the node registry, the
// executor and an optional graph source. Every surface (CLI, HTTP, MCP)
// drives the engine through a Service.
type Service struct {
	exec     *runtime.Executor
	registry *registry.Registry
	source   ports.GraphSource
	logger   *slog.Logger
	hub      *hub

	nodeOpts    []nodes.Option
	observers   []ports.Observer
	runtimeOpts []runtime.Option
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets the structured logger shared with the executor.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRegistry replaces the built-in node library with a custom registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithNodeOptions tunes the built-in node library (e.g. LLM defaults).
// Ignored when WithRegistry is used.
func WithNodeOptions(opts ...nodes.Option) Option {
	return func(s *Service) {
		s.nodeOpts = append(s.nodeOpts, opts...)
	}
}

// WithGraphSource sets where StartByID loads graphs from.
func WithGraphSource(src ports.GraphSource) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithObserver adds observers that receive the events of every run.
func WithObserver(o ...ports.Observer) Option {
	return func(s *Service) {
		s.observers = append(s.observers, o...)
	}
}

// WithLocker guards starts with a cross-process run lock.
func WithLocker(l ports.RunLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.runtimeOpts = append(s.runtimeOpts, runtime.WithLocker(l, ttl))
	}
}

// WithTracer sets the tracer used for node invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.runtimeOpts = append(s.runtimeOpts, runtime.WithTracer(t))
	}
}

// WithTimeouts bounds node setup and the stop grace period. Zero keeps the default.
func WithTimeouts(setup, grace time.Duration) Option {
	return func(s *Service) {
		s.runtimeOpts = append(s.runtimeOpts, runtime.WithSetupTimeout(setup), runtime.WithGraceTimeout(grace))
	}
}

// WithPoolSize sets the number of pooled workers shared by all runs.
func WithPoolSize(n int) Option {
	return func(s *Service) {
		s.runtimeOpts = append(s.runtimeOpts, runtime.WithPoolSize(n))
	}
}

// WithRetainedRuns sets how many stopped runs stay queryable.
func WithRetainedRuns(n int) Option {
	return func(s *Service) {
		s.runtimeOpts = append(s.runtimeOpts, runtime.WithRetainedRuns(n))
	}
}

// New builds a Service. Without WithRegistry the built-in node library is registered.
func New(opts ...Option) (*Service, error) {
	s := &Service{hub: newHub()}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.registry == nil {
		s.registry = registry.NewRegistry()
		if err := nodes.Register(s.registry, s.nodeOpts...); err != nil {
			return nil, fmt.Errorf("register built-in nodes: %w", err)
		}
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(s.logger),
		runtime.WithObserver(s.observers...),
		runtime.WithObserver(s.hub),
	}
	runtimeOpts = append(runtimeOpts, s.runtimeOpts...)

	exec, err := runtime.NewExecutor(s.registry, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	s.exec = exec
	return s, nil
}

// Registry returns the node type registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// NodeTypes lists every registered node type, sorted by name.
func (s *Service) NodeTypes() []registry.Descriptor { return s.registry.Descriptors() }

// Validate checks g against the registry without instantiating anything.
func (s *Service) Validate(g domain.Graph) error {
	return runtime.Validate(g, s.registry)
}

// Start validates and starts g. It returns once every node is set up.
func (s *Service) Start(ctx context.Context, g domain.Graph, opts ...StartOption) (*Run, error) {
	return s.exec.Start(ctx, g, opts...)
}

// StartByID loads a graph from the configured source and starts it.
func (s *Service) StartByID(ctx context.Context, graphID string, opts ...StartOption) (*Run, error) {
	g, err := s.LoadGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return s.Start(ctx, g, opts...)
}

// Stop stops a run. Stopping an already stopped run is a no-op.
func (s *Service) Stop(ctx context.Context, runID, reason string) error {
	return s.exec.Stop(ctx, runID, reason)
}

// Wait blocks until the run stops or ctx is done.
func (s *Service) Wait(ctx context.Context, runID string) error {
	r, err := s.exec.Run(runID)
	if err != nil {
		return err
	}
	select {
	case <-r.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectInput feeds data into a node of a running run.
func (s *Service) InjectInput(runID, nodeID string, data any) error {
	return s.exec.InjectInput(runID, nodeID, data)
}

// InjectPort feeds data into one named input port of a node.
func (s *Service) InjectPort(runID, nodeID, port string, data any) error {
	return s.exec.InjectPort(runID, nodeID, port, data)
}

// PublishTo publishes a message on the bus of one run.
func (s *Service) PublishTo(runID, topic string, payload any) error {
	r, err := s.exec.Run(runID)
	if err != nil {
		return err
	}
	if st := r.State(); st != domain.RunRunning {
		return fmt.Errorf("publish to run %q: run is %s", runID, st)
	}
	return r.Bus().Publish(topic, payload)
}

// Publish fans a message out to the bus of every running run. It is the
// target of the Redis bridge.
func (s *Service) Publish(topic string, payload any) error {
	var errs []error
	for _, r := range s.exec.Runs() {
		if r.State() != domain.RunRunning {
			continue
		}
		if err := r.Bus().Publish(topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("run %s: %w", r.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the state of a run, including recently stopped ones.
func (s *Service) Snapshot(runID string) (domain.RunSnapshot, error) {
	r, err := s.exec.Run(runID)
	if err != nil {
		return domain.RunSnapshot{}, err
	}
	return r.Snapshot(), nil
}

// RunGraph returns the graph a run executes.
func (s *Service) RunGraph(runID string) (domain.Graph, error) {
	r, err := s.exec.Run(runID)
	if err != nil {
		return domain.Graph{}, err
	}
	return r.Graph(), nil
}

// Runs returns snapshots of every known run, oldest first.
func (s *Service) Runs() []domain.RunSnapshot {
	runs := s.exec.Runs()
	out := make([]domain.RunSnapshot, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	return out
}

// Subscribe registers an observer for the events of every run until the
// returned cancel func is called.
func (s *Service) Subscribe(o ports.Observer) (cancel func()) {
	return s.hub.add(o)
}

// LoadGraph reads a graph from the configured source.
func (s *Service) LoadGraph(ctx context.Context, graphID string) (domain.Graph, error) {
	if s.source == nil {
		return domain.Graph{}, ErrNoGraphStore
	}
	g, err := s.source.Load(ctx, graphID)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("load graph %q: %w", graphID, err)
	}
	return g, nil
}

// Graphs lists the IDs available from the configured source.
func (s *Service) Graphs(ctx context.Context) ([]string, error) {
	if s.source == nil {
		return nil, ErrNoGraphStore
	}
	return s.source.List(ctx)
}

// SaveGraph validates g and persists it. The source must be a GraphStore.
func (s *Service) SaveGraph(ctx context.Context, g domain.Graph) error {
	store, ok := s.source.(ports.GraphStore)
	if !ok {
		return ErrNoGraphStore
	}
	if err := s.Validate(g); err != nil {
		return err
	}
	return store.Save(ctx, g)
}

// Close stops every active run and releases the worker pool.
func (s *Service) Close(ctx context.Context) error {
	return s.exec.Close(ctx)
}

// hub is a service-wide observer whose subscribers can come and go while
// runs are live.
type hub struct {
	mu        sync.RWMutex
	next      int
	observers map[int]ports.Observer
}

func newHub() *hub {
	return &hub{observers: make(map[int]ports.Observer)}
}

func (h *hub) add(o ports.Observer) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.observers[id] = o
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, id)
	}
}

func (h *hub) OnEvent(ctx context.Context, ev domain.Event) {
	h.mu.RLock()
	subs := make([]ports.Observer, 0, len(h.observers))
	for _, o := range h.observers {
		subs = append(subs, o)
	}
	h.mu.RUnlock()
	for _, o := range subs {
		o.OnEvent(ctx, ev)
	}
}
