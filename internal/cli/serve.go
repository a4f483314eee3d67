package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	httpadapter "github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/http"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Addr string
	// Listener overrides Addr, mainly for tests.
	Listener net.Listener
	// Autostart lists graph IDs started once the server is up.
	Autostart []string
}

// Serve runs the HTTP API and, when redis is configured, the chat bridge
// until ctx is cancelled. Active runs are stopped on the way out.
func Serve(ctx context.Context, app *App, opts ServeOptions) error {
	api := httpadapter.NewServer(app.Service,
		httpadapter.WithLogger(app.Logger),
		httpadapter.WithCORSOrigins(app.Config.HTTP.CORSOrigins...),
		httpadapter.WithMetricsHandler(promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})),
	)
	defer api.Close()

	ln := opts.Listener
	if ln == nil {
		addr := opts.Addr
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info("HTTP server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if bridge := app.Bridge(); bridge != nil {
		g.Go(func() error {
			return bridge.Run(ctx)
		})
	}

	for _, id := range opts.Autostart {
		if _, err := app.Service.StartByID(ctx, id); err != nil {
			app.Logger.Error("Autostart failed", "graph_id", id, "err", err)
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Runs stop first so websocket clients see execution.stopped.
		if err := app.Service.Close(shutdownCtx); err != nil {
			app.Logger.Warn("Stopping runs", "err", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		app.Logger.Info("HTTP server stopped gracefully")
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Transport string
	Addr      string
	BaseURL   string
}

// ServeMCP exposes the service as MCP tools over stdio or SSE.
func ServeMCP(ctx context.Context, app *App, opts MCPOptions) error {
	srv := mcp.NewServer(app.Service, app.Logger)
	switch opts.Transport {
	case "", "stdio":
		app.Logger.Info("Starting MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + opts.Addr
		}
		return srv.ServeSSE(ctx, opts.Addr, baseURL)
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", opts.Transport)
	}
}
