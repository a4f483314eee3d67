package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/bus"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Run is one live execution of a graph. It owns the run's bus, observers,
// cancellation and node cells; two runs never share any of them.
type Run struct {
	id     string
	exec   *Executor
	plan   *plan
	cells  map[string]*cell
	bus    *bus.Bus
	em     *emitter
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// inflight counts pool tasks draining cells.
	inflight sync.WaitGroup

	mu        sync.RWMutex
	state     domain.RunState
	reason    string
	startedAt time.Time
	stoppedAt time.Time

	unlock   ports.UnlockFunc
	stopOnce sync.Once
	done     chan struct{}
}

func newRun(e *Executor, id string, p *plan, observers []ports.Observer, unlock ports.UnlockFunc) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	logger := e.logger.With("run_id", id, "graph_id", p.graph.ID)
	r := &Run{
		id:        id,
		exec:      e,
		plan:      p,
		cells:     make(map[string]*cell, len(p.nodes)),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.RunStarting,
		startedAt: time.Now(),
		unlock:    unlock,
		done:      make(chan struct{}),
	}
	r.em = newEmitter(observers, logger)
	r.bus = bus.New(
		bus.WithLogger(logger),
		bus.WithErrorHook(func(sub *bus.Subscription, msg bus.Message, err error) {
			r.emitLog(nil, domain.LevelWarn, fmt.Sprintf("bus subscriber on %q failed: %v", msg.Topic, err))
		}),
	)
	return r
}

func (r *Run) ID() string      { return r.id }
func (r *Run) GraphID() string { return r.plan.graph.ID }

// Graph returns a copy of the graph the run executes.
func (r *Run) Graph() domain.Graph { return r.plan.graph.Clone() }

// Bus exposes the run's event bus so adapters can feed external signals in.
func (r *Run) Bus() *bus.Bus { return r.bus }

// Done is closed once the run has fully stopped.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) State() domain.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Reason is the stop reason, empty while running.
func (r *Run) Reason() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reason
}

func (r *Run) StartedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startedAt
}

func (r *Run) setState(s domain.RunState) {
	r.mu.Lock()
	r.state = s
	if s == domain.RunStopped {
		r.stoppedAt = time.Now()
	}
	r.mu.Unlock()
}

// Snapshot returns the run state and every node's status in topological order.
func (r *Run) Snapshot() domain.RunSnapshot {
	snap := domain.RunSnapshot{
		RunID:   r.id,
		GraphID: r.GraphID(),
		State:   r.State(),
		Nodes:   make([]domain.NodeState, 0, len(r.plan.order)),
	}
	for _, id := range r.plan.order {
		if c, ok := r.cells[id]; ok {
			snap.Nodes = append(snap.Nodes, c.state())
		}
	}
	return snap
}

// NodeStatus returns the current status of one node.
func (r *Run) NodeStatus(nodeID string) (domain.Status, error) {
	c, ok := r.cells[nodeID]
	if !ok {
		return "", fmt.Errorf("node %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	return c.state().Status, nil
}

func (r *Run) emit(ev domain.Event) {
	ev.RunID = r.id
	ev.GraphID = r.GraphID()
	r.em.emit(ev)
}

func (r *Run) emitStatus(c *cell, status domain.Status, msg string, elapsed time.Duration, data any) {
	st := c.state()
	r.emit(domain.Event{
		Type:     domain.EventNodeStatus,
		NodeID:   c.id(),
		NodeType: c.plan.def.Type,
		Status:   status,
		Message:  msg,
		Cycle:    st.Cycle,
		Duration: float64(elapsed.Microseconds()) / 1000,
		Data:     data,
	})
}

// emitLog reports a log event; c may be nil for run-level messages.
func (r *Run) emitLog(c *cell, level domain.Level, msg string) {
	ev := domain.Event{Type: domain.EventLog, Level: level, Message: msg}
	logger := r.logger
	if c != nil {
		ev.NodeID = c.id()
		ev.NodeType = c.plan.def.Type
		logger = c.logger
	}
	switch level {
	case domain.LevelError:
		logger.Error(msg)
	case domain.LevelWarn:
		logger.Warn(msg)
	case domain.LevelInfo:
		logger.Info(msg)
	default:
		logger.Debug(msg)
	}
	r.emit(ev)
}

// route forwards outputs along the node's outgoing connections, coercing
// values between port types.
func (r *Run) route(c *cell, out map[string]any) {
	if len(out) == 0 {
		return
	}
	for port := range out {
		if _, ok := c.desc.Output(port); !ok {
			c.logger.Warn("node produced undeclared output", "port", port)
		}
	}
	pt := r.exec.registry.PortTypes()
	for _, conn := range c.plan.outgoing {
		v, ok := out[conn.From.Port]
		if !ok {
			continue
		}
		target := r.cells[conn.To.Node]
		if target == nil {
			continue
		}
		src, _ := c.desc.Output(conn.From.Port)
		dst, _ := target.desc.Input(conn.To.Port)
		cv, err := pt.Coerce(src.Type, dst.Type, v)
		if err != nil {
			r.emitLog(c, domain.LevelWarn, fmt.Sprintf("dropped value on %s: %v", conn, err))
			continue
		}
		target.enqueue(work{kind: workDeliver, port: conn.To.Port, value: cv})
	}
}

// instantiate builds and configures every node of the run. No node is set
// up unless all of them configure cleanly.
func (r *Run) instantiate() error {
	var problems []error
	for _, id := range r.plan.order {
		pn := r.plan.nodes[id]
		n, _, err := r.exec.registry.Instantiate(pn.def.Type)
		if err != nil {
			problems = append(problems, &domain.ConfigError{NodeID: id, Err: err})
			continue
		}
		c := newCell(r, pn, n)
		r.cells[id] = c
		if err := c.configure(); err != nil {
			problems = append(problems, &domain.ConfigError{NodeID: id, Err: err})
		}
	}
	if len(problems) > 0 {
		return &domain.GraphValidationError{GraphID: r.GraphID(), Problems: problems}
	}
	return nil
}

// setup runs every node's Setup concurrently. A failing root or entry node
// fails the whole start; any other failure only disables that node.
func (r *Run) setup(ctx context.Context) error {
	errs := make([]error, len(r.plan.order))
	var g errgroup.Group
	for i, id := range r.plan.order {
		c := r.cells[id]
		g.Go(func() error {
			errs[i] = c.setup(ctx, r.exec.setupTimeout)
			return nil
		})
	}
	_ = g.Wait()

	var rootErr error
	for i, id := range r.plan.order {
		if errs[i] == nil {
			continue
		}
		c := r.cells[id]
		c.disable(errs[i])
		if c.plan.root && rootErr == nil {
			rootErr = &domain.SetupError{NodeID: id, Err: errs[i]}
		}
	}
	return rootErr
}

// begin announces the run and activates every node. Event nodes go to
// running; pull roots fire once in topological order.
func (r *Run) begin() {
	r.setState(domain.RunRunning)
	r.emit(domain.Event{
		Type:    domain.EventExecutionStarted,
		Message: r.plan.graph.Name,
		Data:    map[string]any{"nodes": len(r.cells)},
	})
	r.logger.Info("run started", "nodes", len(r.cells))

	for _, id := range r.plan.order {
		c := r.cells[id]
		if c.event != nil {
			c.finish(domain.StatusRunning, "", 0, nil)
		}
	}
	for _, id := range r.plan.order {
		r.cells[id].activate()
	}
	for _, id := range r.plan.order {
		c := r.cells[id]
		if c.pull != nil && c.plan.root {
			c.enqueue(work{kind: workFire})
		}
	}
}

// shutdown cancels the run, waits up to the grace timeout for in-flight
// invocations, tears every node down and reports the outcome. announce is
// false when the run aborts during start and never announced itself.
func (r *Run) shutdown(ctx context.Context, reason string, announce bool) {
	r.mu.Lock()
	r.state = domain.RunStopping
	r.reason = reason
	r.mu.Unlock()

	for _, c := range r.cells {
		c.close()
	}
	r.cancel()

	grace := r.exec.graceTimeout
	base := context.WithoutCancel(ctx)
	if !waitTimeout(&r.inflight, grace) {
		r.emitLog(nil, domain.LevelWarn, fmt.Sprintf("in-flight invocations still running after %s grace period", grace))
	}

	busCtx, cancelBus := context.WithTimeout(base, grace)
	if err := r.bus.Close(busCtx); err != nil {
		r.logger.Warn("bus did not close cleanly", "error", err)
	}
	cancelBus()

	tdCtx, cancelTd := context.WithTimeout(base, grace)
	var g errgroup.Group
	for _, c := range r.cells {
		g.Go(func() error {
			c.teardown(tdCtx)
			return nil
		})
	}
	_ = g.Wait()
	cancelTd()

	for _, id := range r.plan.order {
		if c, ok := r.cells[id]; ok {
			c.markStopped()
		}
	}

	if announce {
		r.emit(domain.Event{Type: domain.EventExecutionStopped, Reason: reason})
	}
	flushCtx, cancelFlush := context.WithTimeout(base, grace)
	if err := r.em.close(flushCtx); err != nil {
		r.logger.Warn("observer events not fully delivered", "error", err)
	}
	cancelFlush()

	if r.unlock != nil {
		if err := r.unlock(base); err != nil {
			r.logger.Warn("release run lock", "error", err)
		}
	}
	r.exec.release(r.GraphID(), r.id)
	r.setState(domain.RunStopped)
	r.logger.Info("run stopped", "reason", reason)
	close(r.done)
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
