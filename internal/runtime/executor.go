// Package runtime is the workflow executor: it validates a graph, builds one
// cell per node, sets nodes up, routes values along typed connections and
// reports everything that happens to the run's observers.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSetupTimeout = 10 * time.Second
	DefaultGraceTimeout = 5 * time.Second
	DefaultPoolSize     = 256
	DefaultRetainedRuns = 32
	DefaultLockTTL      = time.Minute
)

// ErrClosed is returned by Start once Close has been called.
var ErrClosed = errors.New("executor is closed")

// Executor starts and stops runs. One Executor serves many concurrent runs
// of different graphs, but at most one run per graph ID.
type Executor struct {
	registry     *registry.Registry
	logger       *slog.Logger
	tracer       trace.Tracer
	observers    []ports.Observer
	locker       ports.RunLocker
	lockTTL      time.Duration
	setupTimeout time.Duration
	graceTimeout time.Duration
	poolSize     int
	retain       int
	pool         *ants.Pool

	mu      sync.RWMutex
	runs    map[string]*Run
	active  map[string]string
	retired []string
	closed  bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for node invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithObserver adds observers that receive the events of every run.
func WithObserver(o ...ports.Observer) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, o...)
	}
}

// WithLocker guards starts with a cross-process run lock.
func WithLocker(l ports.RunLocker, ttl time.Duration) Option {
	return func(e *Executor) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithSetupTimeout bounds each node's Setup.
func WithSetupTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.setupTimeout = d
		}
	}
}

// WithGraceTimeout bounds how long Stop waits for in-flight invocations.
func WithGraceTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.graceTimeout = d
		}
	}
}

// WithPoolSize sets the number of pooled workers shared by all runs.
func WithPoolSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// WithRetainedRuns sets how many stopped runs stay queryable.
func WithRetainedRuns(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retain = n
		}
	}
}

// NewExecutor creates an executor that instantiates nodes from reg.
func NewExecutor(reg *registry.Registry, opts ...Option) (*Executor, error) {
	if reg == nil {
		return nil, fmt.Errorf("executor: nil registry")
	}
	e := &Executor{
		registry:     reg,
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer("github.com/oboroge0/AITuberFlow-sub001/runtime"),
		lockTTL:      DefaultLockTTL,
		setupTimeout: DefaultSetupTimeout,
		graceTimeout: DefaultGraceTimeout,
		poolSize:     DefaultPoolSize,
		retain:       DefaultRetainedRuns,
		runs:         make(map[string]*Run),
		active:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(e.poolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			e.logger.Error("worker panic", "error", fmt.Errorf("%v", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Registry returns the node type registry the executor instantiates from.
func (e *Executor) Registry() *registry.Registry { return e.registry }

// submit schedules fn on the pool, falling back to a goroutine when the pool
// is saturated so a busy run never starves another.
func (e *Executor) submit(fn func()) {
	if err := e.pool.Submit(fn); err != nil {
		go fn()
	}
}

// StartOption tunes a single Start call.
type StartOption func(*startConfig)

type startConfig struct {
	fromNode  string
	observers []ports.Observer
}

// FromNode restricts the run to the given node and everything downstream of it.
func FromNode(id string) StartOption {
	return func(c *startConfig) {
		c.fromNode = id
	}
}

// WithRunObserver adds observers for this run only.
func WithRunObserver(o ...ports.Observer) StartOption {
	return func(c *startConfig) {
		c.observers = append(c.observers, o...)
	}
}

// Start validates g, instantiates and configures every node, then sets them
// all up before any node executes. It returns once setup is complete;
// execution continues in the background until Stop.
func (e *Executor) Start(ctx context.Context, g domain.Graph, opts ...StartOption) (*Run, error) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	g = g.Clone()
	if g.ID == "" {
		g.ID = "graph-" + uuid.NewString()
	}

	p, err := buildPlan(g, e.registry, cfg.fromNode)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if err := e.reserve(g.ID, runID); err != nil {
		return nil, err
	}

	var unlock ports.UnlockFunc
	if e.locker != nil {
		unlock, err = e.locker.TryLock(ctx, "run:"+g.ID, e.lockTTL)
		if err != nil {
			e.release(g.ID, runID)
			if errors.Is(err, domain.ErrLocked) {
				return nil, &domain.AlreadyRunningError{GraphID: g.ID}
			}
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
	}

	observers := make([]ports.Observer, 0, len(e.observers)+len(cfg.observers))
	observers = append(observers, e.observers...)
	observers = append(observers, cfg.observers...)
	r := newRun(e, runID, p, observers, unlock)

	if err := r.instantiate(); err != nil {
		r.shutdown(ctx, "configure failed", false)
		return nil, err
	}
	if err := r.setup(ctx); err != nil {
		r.shutdown(ctx, "setup failed", false)
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		r.shutdown(ctx, "shutdown", false)
		return nil, ErrClosed
	}
	e.runs[runID] = r
	e.mu.Unlock()

	r.begin()
	return r, nil
}

func (e *Executor) reserve(graphID, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if other, busy := e.active[graphID]; busy {
		return &domain.AlreadyRunningError{GraphID: graphID, RunID: other}
	}
	e.active[graphID] = runID
	return nil
}

// release frees the graph slot and retires the run's record.
func (e *Executor) release(graphID, runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[graphID] == runID {
		delete(e.active, graphID)
	}
	if _, ok := e.runs[runID]; !ok {
		return
	}
	e.retired = append(e.retired, runID)
	for len(e.retired) > e.retain {
		delete(e.runs, e.retired[0])
		e.retired = e.retired[1:]
	}
}

// Stop cancels the run, waits for in-flight invocations up to the grace
// timeout, tears down every node and emits execution.stopped. Stopping an
// already stopped run is a no-op.
func (e *Executor) Stop(ctx context.Context, runID, reason string) error {
	r, err := e.Run(runID)
	if err != nil {
		return &domain.StopError{RunID: runID, Err: err}
	}
	r.stopOnce.Do(func() {
		r.shutdown(ctx, reason, true)
	})
	return nil
}

// Run returns a run by ID, including recently stopped ones.
func (e *Executor) Run(runID string) (*Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, domain.ErrRunNotFound)
	}
	return r, nil
}

// ActiveRun returns the running run of a graph, if any.
func (e *Executor) ActiveRun(graphID string) (*Run, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	runID, ok := e.active[graphID]
	if !ok {
		return nil, false
	}
	r, ok := e.runs[runID]
	return r, ok
}

// Runs lists known runs, oldest first.
func (e *Executor) Runs() []*Run {
	e.mu.RLock()
	out := make([]*Run, 0, len(e.runs))
	for _, r := range e.runs {
		out = append(out, r)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt().Before(out[j].StartedAt()) })
	return out
}

// InjectInput feeds data into a node as if it arrived over a connection.
// Event nodes receive exactly one OnEvent with source inject. Pull nodes take
// data on their only input, or a record keyed by input port names; nodes
// without inputs are simply triggered.
func (e *Executor) InjectInput(runID, nodeID string, data any) error {
	c, err := e.injectTarget(runID, nodeID)
	if err != nil {
		return err
	}
	if c.event != nil {
		c.enqueue(work{kind: workInject, value: data})
		return nil
	}
	values, err := injectValues(c, data)
	if err != nil {
		return err
	}
	c.enqueue(work{kind: workInject, values: values})
	return nil
}

// InjectPort feeds data into one named input port.
func (e *Executor) InjectPort(runID, nodeID, port string, data any) error {
	c, err := e.injectTarget(runID, nodeID)
	if err != nil {
		return err
	}
	if _, ok := c.desc.Input(port); !ok {
		return fmt.Errorf("inject %s.%s: unknown input port", nodeID, port)
	}
	if c.event != nil {
		c.enqueue(work{kind: workDeliver, port: port, value: data})
		return nil
	}
	c.enqueue(work{kind: workInject, values: map[string]any{port: data}})
	return nil
}

func (e *Executor) injectTarget(runID, nodeID string) (*cell, error) {
	r, err := e.Run(runID)
	if err != nil {
		return nil, err
	}
	if st := r.State(); st != domain.RunRunning {
		return nil, fmt.Errorf("inject into run %q: run is %s", runID, st)
	}
	c, ok := r.cells[nodeID]
	if !ok {
		return nil, fmt.Errorf("inject into %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	if !c.accepting() {
		return nil, fmt.Errorf("inject into %q: node is %s", nodeID, c.state().Status)
	}
	return c, nil
}

func injectValues(c *cell, data any) (map[string]any, error) {
	inputs := c.desc.Inputs
	if rec, ok := data.(map[string]any); ok && len(rec) > 0 {
		byPort := true
		for k := range rec {
			if _, ok := c.desc.Input(k); !ok {
				byPort = false
				break
			}
		}
		if byPort {
			return rec, nil
		}
	}
	switch len(inputs) {
	case 0:
		return nil, nil
	case 1:
		return map[string]any{inputs[0].Name: data}, nil
	default:
		return nil, fmt.Errorf("inject into %q: node has %d inputs, send a record keyed by port name", c.id(), len(inputs))
	}
}

// Close stops every active run and releases the worker pool.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var active []string
	for _, runID := range e.active {
		active = append(active, runID)
	}
	e.mu.Unlock()

	var errs []error
	for _, runID := range active {
		if err := e.Stop(ctx, runID, "shutdown"); err != nil && !errors.Is(err, domain.ErrRunNotFound) {
			errs = append(errs, err)
		}
	}
	e.pool.Release()
	return errors.Join(errs...)
}
