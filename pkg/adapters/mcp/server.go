// Package mcp exposes run control as Model Context Protocol tools so an AI
// assistant can start, steer and inspect workflow runs.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/graph"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/rs/cors"
)

const (
	nodeTypesURI = "aituberflow://node-types"
	runGraphURI  = "aituberflow://runs/{run_id}/graph"
)

// Engine defines the interface required by the MCP server.
type Engine interface {
	StartByID(ctx context.Context, graphID string, opts ...aituberflow.StartOption) (*aituberflow.Run, error)
	Stop(ctx context.Context, runID, reason string) error
	Runs() []domain.RunSnapshot
	Snapshot(runID string) (domain.RunSnapshot, error)
	RunGraph(runID string) (domain.Graph, error)
	InjectInput(runID, nodeID string, data any) error
	InjectPort(runID, nodeID, port string, data any) error
	PublishTo(runID, topic string, payload any) error
	Graphs(ctx context.Context) ([]string, error)
	NodeTypes() []registry.Descriptor
	Registry() *registry.Registry
}

var _ Engine = (*aituberflow.Service)(nil)

// RunList is the structured result of list_runs.
type RunList struct {
	Runs []domain.RunSnapshot `json:"runs" jsonschema_description:"Known runs, oldest first"`
}

// Ack is the structured result of tools that only change state.
type Ack struct {
	Status string `json:"status" jsonschema_description:"accepted, published or stopped"`
	RunID  string `json:"run_id"`
}

// Server wraps a Service and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("aituberflow-mcp", aituberflow.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_run",
		mcp.WithDescription("Start a stored workflow graph. Returns the run snapshot once every node is set up."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("ID of the stored graph")),
		mcp.WithString("from_node", mcp.Description("Only run this node and everything downstream of it (optional)")),
		mcp.WithOutputSchema[domain.RunSnapshot](),
	), mcp.NewStructuredToolHandler(s.handleStartRun))

	s.mcpServer.AddTool(mcp.NewTool("stop_run",
		mcp.WithDescription("Stop a run, tearing down every node."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithString("reason", mcp.Description("Reason reported to observers (optional)")),
		mcp.WithOutputSchema[domain.RunSnapshot](),
	), mcp.NewStructuredToolHandler(s.handleStopRun))

	s.mcpServer.AddTool(mcp.NewTool("inject_input",
		mcp.WithDescription("Feed data into a node of a running run, as if it arrived over a connection."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Target node ID")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON value, or plain text")),
		mcp.WithString("port", mcp.Description("Target input port (optional)")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleInject))

	s.mcpServer.AddTool(mcp.NewTool("publish_event",
		mcp.WithDescription("Publish a message on a bus topic of a running run (e.g. chat.message)."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Bus topic")),
		mcp.WithString("payload", mcp.Required(), mcp.Description("JSON value, or plain text")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handlePublish))

	s.mcpServer.AddTool(mcp.NewTool("run_status",
		mcp.WithDescription("Get the state of a run and of each of its nodes."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithOutputSchema[domain.RunSnapshot](),
	), mcp.NewStructuredToolHandler(s.handleRunStatus))

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List active and recently stopped runs."),
		mcp.WithOutputSchema[RunList](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunList, error) {
		return RunList{Runs: s.engine.Runs()}, nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the IDs of stored graphs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.Graphs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list graphs failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_node_types",
		mcp.WithDescription("List every node type with its ports and settings schema."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.engine.NodeTypes())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode node types: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleStartRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.RunSnapshot, error) {
	graphID, _ := args["graph_id"].(string)
	var opts []aituberflow.StartOption
	if from, _ := args["from_node"].(string); from != "" {
		opts = append(opts, aituberflow.FromNode(from))
	}
	run, err := s.engine.StartByID(ctx, graphID, opts...)
	if err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("start %q: %w", graphID, err)
	}
	s.logger.Info("MCP: run started", "run_id", run.ID(), "graph_id", graphID)
	return run.Snapshot(), nil
}

func (s *Server) handleStopRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.RunSnapshot, error) {
	runID, _ := args["run_id"].(string)
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "mcp"
	}
	if err := s.engine.Stop(ctx, runID, reason); err != nil {
		return domain.RunSnapshot{}, err
	}
	return s.engine.Snapshot(runID)
}

func (s *Server) handleInject(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	runID, _ := args["run_id"].(string)
	nodeID, _ := args["node_id"].(string)
	port, _ := args["port"].(string)
	data := decodeArg(args["data"])

	var err error
	if port != "" {
		err = s.engine.InjectPort(runID, nodeID, port, data)
	} else {
		err = s.engine.InjectInput(runID, nodeID, data)
	}
	if err != nil {
		return Ack{}, err
	}
	return Ack{Status: "accepted", RunID: runID}, nil
}

func (s *Server) handlePublish(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	runID, _ := args["run_id"].(string)
	topic, _ := args["topic"].(string)
	if err := s.engine.PublishTo(runID, topic, decodeArg(args["payload"])); err != nil {
		return Ack{}, err
	}
	return Ack{Status: "published", RunID: runID}, nil
}

func (s *Server) handleRunStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.RunSnapshot, error) {
	runID, _ := args["run_id"].(string)
	return s.engine.Snapshot(runID)
}

// decodeArg turns a JSON string argument into a value; non-JSON text stays a string.
func decodeArg(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(str), &decoded); err != nil {
		return str
	}
	return decoded
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(nodeTypesURI, "Node Types",
		mcp.WithResourceDescription("Every registered node type with ports and settings schema"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.NodeTypes())
		if err != nil {
			return nil, fmt.Errorf("failed to encode node types: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      nodeTypesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(runGraphURI, "Run Graph",
		mcp.WithTemplateDescription("Mermaid flowchart of a run with live node statuses"),
		mcp.WithTemplateMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runID, err := runIDFromURI(request.Params.URI)
		if err != nil {
			return nil, err
		}
		g, err := s.engine.RunGraph(runID)
		if err != nil {
			return nil, err
		}
		snap, err := s.engine.Snapshot(runID)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(g, s.engine.Registry(), graph.OverlayFromSnapshot(snap)),
			},
		}, nil
	})
}

func runIDFromURI(uri string) (string, error) {
	var runID string
	const prefix, suffix = "aituberflow://runs/", "/graph"
	if len(uri) > len(prefix)+len(suffix) && uri[:len(prefix)] == prefix && uri[len(uri)-len(suffix):] == suffix {
		runID = uri[len(prefix) : len(uri)-len(suffix)]
	}
	if runID == "" {
		return "", fmt.Errorf("invalid run graph uri %q", uri)
	}
	return runID, nil
}
