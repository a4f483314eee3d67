/*
Package aituberflow is a workflow execution engine for AI-streamer pipelines.

A workflow is a directed graph of nodes wired through typed ports. Data nodes
(pull nodes) fire once per activation when every connected input carries a
value; event nodes (timers, chat listeners) stay alive for the whole run and
react to ticks, bus messages and injected input. The engine validates a graph,
orders it topologically, sets every node up before anything executes and then
routes values along connections while a per-run event bus carries
asynchronous signals. Everything observable (status changes, logs, artifacts,
run lifecycle) is delivered to observers.

# Usage

	svc, err := aituberflow.New(
		aituberflow.WithLogger(logger),
		aituberflow.WithGraphSource(file.New("./graphs")),
		aituberflow.WithObserver(observability.NewLog(logger)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close(context.Background())

	run, err := svc.StartByID(ctx, "greeter")
	if err != nil {
		log.Fatal(err)
	}

	// Feed a chat message into an event node.
	_ = svc.InjectInput(run.ID(), "chat", map[string]any{"user": "viewer", "text": "hi"})

	_ = svc.Stop(ctx, run.ID(), "user")

# Surfaces

The same Service backs the CLI (cmd/aituberflow), the HTTP and WebSocket API
(pkg/adapters/http) and the MCP server (pkg/adapters/mcp).
*/
package aituberflow
