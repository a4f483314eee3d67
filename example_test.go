package aituberflow_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/observability"
)

// ExampleService_Start runs a two-node graph: a text node feeding a log output.
func ExampleService_Start() {
	rec := observability.NewRecorder()
	svc, err := aituberflow.New(aituberflow.WithObserver(rec))
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close(context.Background())

	g := domain.Graph{
		ID: "hello",
		Nodes: []domain.NodeDef{
			{ID: "greet", Type: "text", Config: map[string]any{"text": "Hello, chat!"}},
			{ID: "out", Type: "log_output"},
		},
		Connections: []domain.Connection{
			{From: domain.Endpoint{Node: "greet", Port: "text"}, To: domain.Endpoint{Node: "out", Port: "message"}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := svc.Start(ctx, g)
	if err != nil {
		log.Fatal(err)
	}

	ev, err := rec.WaitFor(ctx, func(ev domain.Event) bool { return ev.Type == domain.EventLog })
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(ev.NodeID, ev.Message)

	if err := svc.Stop(ctx, run.ID(), "done"); err != nil {
		log.Fatal(err)
	}
	// Output: out Hello, chat!
}

// ExampleService_Validate shows that wiring mistakes are reported before anything runs.
func ExampleService_Validate() {
	svc, err := aituberflow.New()
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close(context.Background())

	g := domain.Graph{
		ID: "broken",
		Nodes: []domain.NodeDef{
			{ID: "clock", Type: "timer", Config: map[string]any{"interval": 1}},
			{ID: "llm", Type: "llm", Config: map[string]any{"model": "gpt-4o-mini"}},
		},
		Connections: []domain.Connection{
			{From: domain.Endpoint{Node: "clock", Port: "tick"}, To: domain.Endpoint{Node: "llm", Port: "question"}},
		},
	}

	var unknown *domain.UnknownPortError
	if errors.As(svc.Validate(g), &unknown) {
		fmt.Println(unknown)
	}
	// Output: unknown input port llm.question
}
