// Package http exposes a Service over HTTP: run control, input injection,
// graph management and a WebSocket stream of run events.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/graph"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/registry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// maxBodyBytes caps request bodies; graphs are the largest payloads.
const maxBodyBytes = 4 << 20

// Engine is the part of aituberflow.Service the HTTP surface drives.
type Engine interface {
	Start(ctx context.Context, g domain.Graph, opts ...aituberflow.StartOption) (*aituberflow.Run, error)
	StartByID(ctx context.Context, graphID string, opts ...aituberflow.StartOption) (*aituberflow.Run, error)
	Stop(ctx context.Context, runID, reason string) error
	Wait(ctx context.Context, runID string) error
	Runs() []domain.RunSnapshot
	Snapshot(runID string) (domain.RunSnapshot, error)
	RunGraph(runID string) (domain.Graph, error)
	InjectInput(runID, nodeID string, data any) error
	InjectPort(runID, nodeID, port string, data any) error
	PublishTo(runID, topic string, payload any) error
	LoadGraph(ctx context.Context, graphID string) (domain.Graph, error)
	Graphs(ctx context.Context) ([]string, error)
	SaveGraph(ctx context.Context, g domain.Graph) error
	NodeTypes() []registry.Descriptor
	Registry() *registry.Registry
	Subscribe(o ports.Observer) (cancel func())
}

var _ Engine = (*aituberflow.Service)(nil)

// Server holds the handlers of the HTTP surface.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger      *slog.Logger
	origins     []string
	metrics     http.Handler
	pingPeriod  time.Duration
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins (default "*").
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMetricsHandler serves h on /metrics instead of the default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithPingPeriod sets the WebSocket keep-alive interval.
func WithPingPeriod(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingPeriod = d
		}
	}
}

// NewServer creates a Server and subscribes its stream manager to engine.
// Call Close to unsubscribe.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:     engine,
		logger:     slog.New(slog.DiscardHandler),
		origins:    []string{"*"},
		metrics:    promhttp.Handler(),
		pingPeriod: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(0, s.logger)
	s.unsubscribe = engine.Subscribe(s.Streams)
	return s
}

// Close detaches the stream manager from the engine.
func (s *Server) Close() {
	s.unsubscribe()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Get("/node-types", s.ListNodeTypes)

	r.Route("/graphs", func(r chi.Router) {
		r.Get("/", s.ListGraphs)
		r.Get("/{graphID}", s.GetGraph)
		r.Put("/{graphID}", s.PutGraph)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.StartRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.GetRun)
			r.Delete("/", s.StopRun)
			r.Post("/nodes/{nodeID}/input", s.InjectInput)
			r.Post("/events/{topic}", s.PublishEvent)
			r.Get("/graph.mmd", s.GetRunGraph)
			r.Get("/ws", s.StreamRun)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	return c.Handler(r)
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// StartRunRequest starts either a stored graph (GraphID) or an inline Graph.
type StartRunRequest struct {
	GraphID  string        `json:"graph_id,omitempty"`
	Graph    *domain.Graph `json:"graph,omitempty"`
	FromNode string        `json:"from_node,omitempty"`
}

// InjectRequest feeds Data into a node, or into one of its ports when Port is set.
type InjectRequest struct {
	Port string `json:"port,omitempty"`
	Data any    `json:"data"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	active := 0
	for _, run := range s.Engine.Runs() {
		if run.State == domain.RunRunning {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "aituberflow-http",
		"version":     aituberflow.Version,
		"active_runs": active,
	})
}

// ListNodeTypes handles the GET /node-types request.
func (s *Server) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.NodeTypes())
}

// ListGraphs handles the GET /graphs request.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Graphs(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": ids})
}

// GetGraph handles the GET /graphs/{graphID} request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.LoadGraph(r.Context(), chi.URLParam(r, "graphID"))
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// PutGraph handles the PUT /graphs/{graphID} request. The path ID wins over
// the body's.
func (s *Server) PutGraph(w http.ResponseWriter, r *http.Request) {
	var g domain.Graph
	if err := decodeBody(w, r, &g); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	g.ID = chi.URLParam(r, "graphID")
	if err := s.Engine.SaveGraph(r.Context(), g); err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListRuns handles the GET /runs request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.Engine.Runs()})
}

// StartRun handles the POST /runs request.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body StartRunRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}

	var opts []aituberflow.StartOption
	if body.FromNode != "" {
		opts = append(opts, aituberflow.FromNode(body.FromNode))
	}

	ctx := r.Context()
	var (
		run *aituberflow.Run
		err error
	)
	switch {
	case body.Graph != nil:
		if body.GraphID != "" {
			body.Graph.ID = body.GraphID
		}
		run, err = s.Engine.Start(ctx, *body.Graph, opts...)
	case body.GraphID != "":
		run, err = s.Engine.StartByID(ctx, body.GraphID, opts...)
	default:
		s.fail(w, r, errors.New("graph_id or graph is required"), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/runs/"+run.ID())
	writeJSON(w, http.StatusCreated, run.Snapshot())
}

// GetRun handles the GET /runs/{runID} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Snapshot(chi.URLParam(r, "runID"))
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StopRun handles the DELETE /runs/{runID} request.
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "api"
	}
	if err := s.Engine.Stop(r.Context(), runID, reason); err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	snap, err := s.Engine.Snapshot(runID)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// InjectInput handles the POST /runs/{runID}/nodes/{nodeID}/input request.
func (s *Server) InjectInput(w http.ResponseWriter, r *http.Request) {
	var body InjectRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	runID, nodeID := chi.URLParam(r, "runID"), chi.URLParam(r, "nodeID")

	var err error
	if body.Port != "" {
		err = s.Engine.InjectPort(runID, nodeID, body.Port, body.Data)
	} else {
		err = s.Engine.InjectInput(runID, nodeID, body.Data)
	}
	if err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// PublishEvent handles the POST /runs/{runID}/events/{topic} request. The
// whole body is the payload.
func (s *Server) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := decodeBody(w, r, &payload); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.Engine.PublishTo(chi.URLParam(r, "runID"), chi.URLParam(r, "topic"), payload); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

// GetRunGraph handles the GET /runs/{runID}/graph.mmd request.
func (s *Server) GetRunGraph(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	g, err := s.Engine.RunGraph(runID)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	snap, err := s.Engine.Snapshot(runID)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(g, s.Engine.Registry(), graph.OverlayFromSnapshot(snap))))
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// fail maps err to a status code; fallback applies to errors with no
// specific mapping.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := fallback
	resp := errorResponse{Error: err.Error()}

	var (
		invalid *domain.GraphValidationError
		running *domain.AlreadyRunningError
		setup   *domain.SetupError
	)
	switch {
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrGraphNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		status = http.StatusUnprocessableEntity
		for _, p := range invalid.Problems {
			resp.Problems = append(resp.Problems, p.Error())
		}
	case errors.As(err, &running), errors.Is(err, domain.ErrLocked):
		status = http.StatusConflict
	case errors.As(err, &setup):
		status = http.StatusBadGateway
	case errors.Is(err, aituberflow.ErrNoGraphStore):
		status = http.StatusNotImplemented
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
