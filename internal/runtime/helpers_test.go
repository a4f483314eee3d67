package runtime

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/stretchr/testify/require"
)

// tally records what test nodes were asked to do.
type tally struct {
	mu        sync.Mutex
	setups    map[string]int
	teardowns map[string]int
	executed  []string
	inputs    map[string][]ports.Inputs
	events    map[string][]domain.NodeEvent
}

func newTally() *tally {
	return &tally{
		setups:    make(map[string]int),
		teardowns: make(map[string]int),
		inputs:    make(map[string][]ports.Inputs),
		events:    make(map[string][]domain.NodeEvent),
	}
}

func (p *tally) executions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.executed...)
}

func (p *tally) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.executed {
		if e == id {
			n++
		}
	}
	return n
}

func (p *tally) setupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.setups {
		n += c
	}
	return n
}

func (p *tally) teardownsOf(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardowns[id]
}

func (p *tally) eventsOf(id string) []domain.NodeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.NodeEvent(nil), p.events[id]...)
}

func (p *tally) inputsOf(id string) []ports.Inputs {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.Inputs(nil), p.inputs[id]...)
}

type execFunc func(n *testNode, ctx context.Context, in ports.Inputs) (ports.Outputs, error)
type eventFunc func(n *testNode, ctx context.Context, ev domain.NodeEvent) (ports.Outputs, error)
type setupFunc func(n *testNode, ctx context.Context) error

// testNode implements both node kinds; the descriptor decides which one the
// executor drives.
type testNode struct {
	p        *tally
	id       string
	settings map[string]any
	rt       ports.Runtime
	setup    setupFunc
	exec     execFunc
	event    eventFunc
}

func (n *testNode) Configure(settings map[string]any) error {
	n.settings = settings
	if v, ok := settings["fail_configure"].(bool); ok && v {
		return errors.New("configure refused")
	}
	return nil
}

func (n *testNode) Setup(ctx context.Context, rt ports.Runtime) error {
	n.id = rt.NodeID()
	n.rt = rt
	n.p.mu.Lock()
	n.p.setups[n.id]++
	n.p.mu.Unlock()
	if n.setup != nil {
		return n.setup(n, ctx)
	}
	return nil
}

func (n *testNode) Teardown(context.Context) error {
	n.p.mu.Lock()
	n.p.teardowns[n.id]++
	n.p.mu.Unlock()
	return nil
}

func (n *testNode) Execute(ctx context.Context, in ports.Inputs) (ports.Outputs, error) {
	n.p.mu.Lock()
	n.p.executed = append(n.p.executed, n.id)
	n.p.inputs[n.id] = append(n.p.inputs[n.id], in)
	n.p.mu.Unlock()
	if n.exec != nil {
		return n.exec(n, ctx, in)
	}
	return nil, nil
}

func (n *testNode) OnEvent(ctx context.Context, ev domain.NodeEvent) (ports.Outputs, error) {
	n.p.mu.Lock()
	n.p.events[n.id] = append(n.p.events[n.id], ev)
	n.p.mu.Unlock()
	if n.event != nil {
		return n.event(n, ctx, ev)
	}
	return nil, nil
}

func anyPort(name string) domain.Port {
	return domain.Port{Name: name, Type: domain.PortAny}
}

// testRegistry declares the node types the executor tests build graphs from.
func testRegistry(p *tally) *registry.Registry {
	reg := registry.NewRegistry()
	node := func(setup setupFunc, exec execFunc, event eventFunc) registry.Factory {
		return func() ports.Node { return &testNode{p: p, setup: setup, exec: exec, event: event} }
	}
	forward := func(_ *testNode, _ context.Context, in ports.Inputs) (ports.Outputs, error) {
		return ports.Outputs{"out": in["in"]}, nil
	}

	reg.MustRegister(
		registry.Descriptor{
			Type:    "src",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(n *testNode, _ context.Context, _ ports.Inputs) (ports.Outputs, error) {
				if v, ok := n.settings["value"]; ok {
					return ports.Outputs{"out": v}, nil
				}
				return ports.Outputs{"out": n.id}, nil
			}, nil),
		},
		registry.Descriptor{
			Type:    "relay",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{anyPort("in")},
			Outputs: []domain.Port{anyPort("out")},
			New:     node(nil, forward, nil),
		},
		registry.Descriptor{
			Type:    "join",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{anyPort("a"), anyPort("b")},
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(_ *testNode, _ context.Context, in ports.Inputs) (ports.Outputs, error) {
				return ports.Outputs{"out": map[string]any{"a": in["a"], "b": in["b"]}}, nil
			}, nil),
		},
		registry.Descriptor{
			Type:    "stream_sink",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{{Name: "in", Type: domain.PortAny, Streaming: true}},
			New:     node(nil, nil, nil),
		},
		registry.Descriptor{
			Type:    "fail",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{{Name: "in", Type: domain.PortAny, Optional: true}},
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(*testNode, context.Context, ports.Inputs) (ports.Outputs, error) {
				return nil, errors.New("always fails")
			}, nil),
		},
		registry.Descriptor{
			Type:    "panic",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(*testNode, context.Context, ports.Inputs) (ports.Outputs, error) {
				panic("node exploded")
			}, nil),
		},
		registry.Descriptor{
			Type:    "slow",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(n *testNode, ctx context.Context, _ ports.Inputs) (ports.Outputs, error) {
				select {
				case <-time.After(80 * time.Millisecond):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return ports.Outputs{"out": "slow:" + n.id}, nil
			}, nil),
		},
		registry.Descriptor{
			Type:    "stubborn",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(nil, func(*testNode, context.Context, ports.Inputs) (ports.Outputs, error) {
				// Ignores cancellation on purpose.
				time.Sleep(time.Second)
				return ports.Outputs{"out": "late"}, nil
			}, nil),
		},
		registry.Descriptor{
			Type:    "listener",
			Kind:    domain.KindEvent,
			Inputs:  []domain.Port{{Name: "in", Type: domain.PortAny, Optional: true}},
			Outputs: []domain.Port{anyPort("out")},
			New: node(func(n *testNode, _ context.Context) error {
				if topic, ok := n.settings["topic"].(string); ok {
					return n.rt.Subscribe(topic)
				}
				return nil
			}, nil, func(_ *testNode, _ context.Context, ev domain.NodeEvent) (ports.Outputs, error) {
				if ev.Payload == "bad" {
					return nil, errors.New("cannot handle bad")
				}
				return ports.Outputs{"out": ev.Payload}, nil
			}),
		},
		registry.Descriptor{
			Type:    "badsetup",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{{Name: "in", Type: domain.PortAny, Optional: true}},
			Outputs: []domain.Port{anyPort("out")},
			New: node(func(*testNode, context.Context) error {
				return errors.New("no backend")
			}, forward, nil),
		},
		registry.Descriptor{
			Type:    "hang",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(func(_ *testNode, ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}, nil, nil),
		},
		registry.Descriptor{
			Type:    "gated",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{anyPort("out")},
			New: node(func(n *testNode, ctx context.Context) error {
				if entered, ok := n.settings["entered"].(chan struct{}); ok {
					close(entered)
				}
				gate, _ := n.settings["gate"].(chan struct{})
				select {
				case <-gate:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}, nil, nil),
		},
		registry.Descriptor{
			Type:    "num",
			Kind:    domain.KindPull,
			Outputs: []domain.Port{{Name: "n", Type: domain.PortNumber}},
			New: node(nil, func(*testNode, context.Context, ports.Inputs) (ports.Outputs, error) {
				return ports.Outputs{"n": 1.5}, nil
			}, nil),
		},
		registry.Descriptor{
			Type:    "str",
			Kind:    domain.KindPull,
			Inputs:  []domain.Port{{Name: "s", Type: domain.PortString}},
			Outputs: []domain.Port{anyPort("out")},
			New:     node(nil, nil, nil),
		},
		registry.Descriptor{
			Type:   "flag",
			Kind:   domain.KindPull,
			Inputs: []domain.Port{{Name: "b", Type: domain.PortBoolean}},
			New:    node(nil, nil, nil),
		},
	)
	return reg
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) OnEvent(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) statuses(nodeID string) []domain.Status {
	var out []domain.Status
	for _, ev := range r.all() {
		if ev.Type == domain.EventNodeStatus && ev.NodeID == nodeID {
			out = append(out, ev.Status)
		}
	}
	return out
}

func (r *recorder) logs(match func(domain.Event) bool) []domain.Event {
	var out []domain.Event
	for _, ev := range r.all() {
		if ev.Type == domain.EventLog && match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) has(t domain.EventType) bool {
	for _, ev := range r.all() {
		if ev.Type == t {
			return true
		}
	}
	return false
}

func newTestExecutor(t *testing.T, reg *registry.Registry, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithGraceTimeout(500 * time.Millisecond)}, opts...)
	e, err := NewExecutor(reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func conn(from, to string) domain.Connection {
	f, err := domain.ParseEndpoint(from)
	if err != nil {
		panic(err)
	}
	d, err := domain.ParseEndpoint(to)
	if err != nil {
		panic(err)
	}
	return domain.Connection{From: f, To: d}
}

func stopRun(t *testing.T, e *Executor, r *Run) {
	t.Helper()
	require.NoError(t, e.Stop(context.Background(), r.ID(), "test done"))
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish stopping")
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
