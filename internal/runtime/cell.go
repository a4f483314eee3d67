package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type workKind int

const (
	// workDeliver carries a value arriving on an input port.
	workDeliver workKind = iota
	// workFire activates a pull node with whatever its inputs hold.
	workFire
	// workInject carries out-of-band input.
	workInject
	// workEvent is a stimulus for an event node.
	workEvent
)

type work struct {
	kind   workKind
	port   string
	value  any
	values map[string]any
	event  domain.NodeEvent
}

// cell owns one node instance for one run. Work for the node is queued here
// and drained by at most one pool task at a time, which serialises every
// Execute/OnEvent call of the node.
type cell struct {
	run    *Run
	plan   *planNode
	desc   registry.Descriptor
	node   ports.Node
	pull   ports.PullNode
	event  ports.EventNode
	rt     *nodeRuntime
	logger *slog.Logger

	mu        sync.Mutex
	status    domain.Status
	cycle     int
	lastErr   string
	active    bool
	closed    bool
	disabled  bool
	scheduled bool
	queue     []work

	// slots buffer input values between activations. Only the draining task
	// touches them.
	slots map[string][]any

	teardownOnce sync.Once
}

func newCell(r *Run, pn *planNode, n ports.Node) *cell {
	c := &cell{
		run:    r,
		plan:   pn,
		desc:   pn.desc,
		node:   n,
		status: domain.StatusIdle,
		slots:  make(map[string][]any),
		logger: r.logger.With("node_id", pn.def.ID, "node_type", pn.def.Type),
	}
	c.pull, _ = n.(ports.PullNode)
	c.event, _ = n.(ports.EventNode)
	if pn.desc.Kind == domain.KindPull {
		c.event = nil
	} else {
		c.pull = nil
	}
	c.rt = &nodeRuntime{c: c}
	return c
}

func (c *cell) id() string { return c.plan.def.ID }

func (c *cell) configure() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("configure panic: %v", r)
		}
	}()
	settings := make(map[string]any, len(c.plan.def.Config))
	for k, v := range c.plan.def.Config {
		settings[k] = v
	}
	return c.node.Configure(settings)
}

func (c *cell) setup(parent context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.run.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("setup panic: %v", r)
			}
		}()
		done <- c.node.Setup(ctx, c.rt)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("setup did not finish within %s: %w", timeout, ctx.Err())
	}
}

func (c *cell) teardown(ctx context.Context) {
	c.teardownOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.run.emitLog(c, domain.LevelWarn, fmt.Sprintf("teardown panic: %v", r))
			}
		}()
		if err := c.node.Teardown(ctx); err != nil {
			c.run.emitLog(c, domain.LevelWarn, fmt.Sprintf("teardown failed: %v", err))
		}
	})
}

// disable marks a node whose setup failed. It accepts no further work.
func (c *cell) disable(err error) {
	c.mu.Lock()
	c.disabled = true
	c.queue = nil
	from := c.status
	c.status = domain.StatusFailed
	c.lastErr = err.Error()
	c.mu.Unlock()
	if from != domain.StatusFailed {
		c.run.emitStatus(c, domain.StatusFailed, err.Error(), 0, nil)
	}
	c.run.emitLog(c, domain.LevelError, (&domain.SetupError{NodeID: c.id(), Err: err}).Error())
}

func (c *cell) enqueue(w work) bool {
	c.mu.Lock()
	if c.closed || c.disabled {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, w)
	start := c.active && !c.scheduled
	if start {
		c.scheduled = true
		c.run.inflight.Add(1)
	}
	c.mu.Unlock()
	if start {
		c.run.exec.submit(c.drain)
	}
	return true
}

// activate lets queued work (e.g. bus messages received during setup) flow.
func (c *cell) activate() {
	c.mu.Lock()
	if c.closed || c.disabled {
		c.mu.Unlock()
		return
	}
	c.active = true
	start := len(c.queue) > 0 && !c.scheduled
	if start {
		c.scheduled = true
		c.run.inflight.Add(1)
	}
	c.mu.Unlock()
	if start {
		c.run.exec.submit(c.drain)
	}
}

// accepting reports whether the node still takes work.
func (c *cell) accepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.disabled && c.status != domain.StatusStopped
}

// close rejects further work and drops what is queued.
func (c *cell) close() {
	c.mu.Lock()
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
}

func (c *cell) drain() {
	defer c.run.inflight.Done()
	for {
		c.mu.Lock()
		if c.closed || len(c.queue) == 0 {
			c.scheduled = false
			c.mu.Unlock()
			return
		}
		w := c.queue[0]
		c.queue[0] = work{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.process(w)
	}
}

func (c *cell) process(w work) {
	if c.event != nil {
		switch w.kind {
		case workEvent:
			c.handleEvent(w.event)
		case workDeliver:
			c.handleEvent(domain.NodeEvent{Source: domain.SourceInput, Port: w.port, Payload: w.value})
		case workInject:
			c.handleEvent(domain.NodeEvent{Source: domain.SourceInject, Payload: w.value})
		}
		return
	}

	switch w.kind {
	case workDeliver:
		c.put(w.port, w.value)
		if c.ready() {
			c.execute(c.take())
		}
	case workInject:
		for port, v := range w.values {
			c.put(port, v)
		}
		if len(c.plan.connected) == 0 || c.ready() {
			c.execute(c.take())
		}
	case workFire:
		c.execute(c.take())
	}
}

func (c *cell) put(port string, v any) {
	if in, ok := c.desc.Input(port); ok && in.Streaming {
		c.slots[port] = append(c.slots[port], v)
		return
	}
	// Non-streaming ports keep only the most recent value.
	c.slots[port] = []any{v}
}

// ready reports whether every connected input holds a value.
func (c *cell) ready() bool {
	if len(c.plan.connected) == 0 {
		return false
	}
	for port := range c.plan.connected {
		if len(c.slots[port]) == 0 {
			return false
		}
	}
	return true
}

// take builds the inputs of the next activation. Streaming ports consume
// their oldest value; other ports keep the most recent one so later
// activations see it again.
func (c *cell) take() ports.Inputs {
	in := make(ports.Inputs, len(c.slots))
	for port, vals := range c.slots {
		if len(vals) == 0 {
			continue
		}
		in[port] = vals[0]
		if p, ok := c.desc.Input(port); !ok || !p.Streaming {
			continue
		}
		if len(vals) == 1 {
			delete(c.slots, port)
		} else {
			c.slots[port] = vals[1:]
		}
	}
	return in
}

// beginCycle moves a pull node to running for a new activation.
func (c *cell) beginCycle() (int, bool) {
	c.mu.Lock()
	switch c.status {
	case domain.StatusIdle, domain.StatusSucceeded, domain.StatusFailed:
	default:
		c.mu.Unlock()
		return 0, false
	}
	if c.closed || c.disabled {
		c.mu.Unlock()
		return 0, false
	}
	c.cycle++
	c.status = domain.StatusRunning
	cycle := c.cycle
	c.mu.Unlock()

	c.run.emitStatus(c, domain.StatusRunning, "", 0, nil)
	return cycle, true
}

// finish applies a transition allowed by the state machine and reports it.
func (c *cell) finish(to domain.Status, msg string, elapsed time.Duration, data any) bool {
	c.mu.Lock()
	if !domain.CanTransition(c.status, to) {
		c.mu.Unlock()
		return false
	}
	c.status = to
	if to == domain.StatusFailed {
		c.lastErr = msg
	}
	c.mu.Unlock()
	c.run.emitStatus(c, to, msg, elapsed, data)
	return true
}

func (c *cell) execute(in ports.Inputs) {
	cycle, ok := c.beginCycle()
	if !ok {
		return
	}

	ctx, span := c.run.exec.tracer.Start(c.run.ctx, "node.execute", trace.WithAttributes(
		attribute.String("run.id", c.run.id),
		attribute.String("node.id", c.id()),
		attribute.String("node.type", c.plan.def.Type),
		attribute.Int("node.cycle", cycle),
	))
	start := time.Now()
	out, err := c.callExecute(ctx, in)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		execErr := &domain.ExecutionError{NodeID: c.id(), Err: err}
		if c.finish(domain.StatusFailed, err.Error(), elapsed, nil) {
			c.run.emitLog(c, domain.LevelError, execErr.Error())
		}
		return
	}
	span.End()

	if !c.finish(domain.StatusSucceeded, "", elapsed, map[string]any(out)) {
		// Stopped while executing: the run is shutting down, drop outputs.
		return
	}
	c.run.route(c, out)
}

func (c *cell) callExecute(ctx context.Context, in ports.Inputs) (out ports.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.pull.Execute(ctx, in)
}

func (c *cell) handleEvent(ev domain.NodeEvent) {
	c.mu.Lock()
	running := c.status == domain.StatusRunning && !c.closed
	c.mu.Unlock()
	if !running {
		return
	}

	ctx, span := c.run.exec.tracer.Start(c.run.ctx, "node.event", trace.WithAttributes(
		attribute.String("run.id", c.run.id),
		attribute.String("node.id", c.id()),
		attribute.String("node.type", c.plan.def.Type),
		attribute.String("event.source", string(ev.Source)),
	))
	out, err := c.callOnEvent(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		// A bad event never takes a listener down.
		c.run.emitLog(c, domain.LevelError, (&domain.ExecutionError{NodeID: c.id(), Err: err}).Error())
		return
	}
	span.End()
	c.run.route(c, out)
}

func (c *cell) callOnEvent(ctx context.Context, ev domain.NodeEvent) (out ports.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.event.OnEvent(ctx, ev)
}

// markStopped moves a non-terminal node to stopped. Nodes that never left
// idle change state silently so observers only hear about nodes that ran.
func (c *cell) markStopped() {
	c.mu.Lock()
	from := c.status
	if from.Terminal() {
		c.mu.Unlock()
		return
	}
	c.status = domain.StatusStopped
	c.mu.Unlock()
	if from != domain.StatusIdle {
		c.run.emitStatus(c, domain.StatusStopped, c.run.Reason(), 0, nil)
	}
}

func (c *cell) state() domain.NodeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	cycle := c.cycle
	if c.event != nil && c.status != domain.StatusIdle {
		cycle = 1
	}
	return domain.NodeState{
		NodeID:    c.id(),
		Type:      c.plan.def.Type,
		Kind:      c.desc.Kind,
		Status:    c.status,
		Cycle:     cycle,
		LastError: c.lastErr,
	}
}
