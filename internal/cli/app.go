// Package cli holds the command implementations behind cmd/aituberflow. Each
// command builds an App from the loaded configuration and drives the
// service through it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/internal/config"
	"github.com/oboroge0/AITuberFlow-sub001/internal/logging"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/file"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/loam"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/memory"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/process"
	redisadapter "github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/redis"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/nodes"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/observability"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

// App bundles a Service with the adapters built from the configuration.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *aituberflow.Service
	Source  ports.GraphSource
	// Gatherer serves the metrics registered by the service.
	Gatherer prometheus.Gatherer

	redis *backend.Client
}

// AppOption customises NewApp, mostly for tests and embedding.
type AppOption func(*appOptions)

type appOptions struct {
	logger    *slog.Logger
	source    ports.GraphSource
	redis     *backend.Client
	observers []ports.Observer
}

// WithAppLogger replaces the logger built from the log configuration.
func WithAppLogger(l *slog.Logger) AppOption {
	return func(o *appOptions) { o.logger = l }
}

// WithAppSource replaces the graph backend named by the configuration.
func WithAppSource(src ports.GraphSource) AppOption {
	return func(o *appOptions) { o.source = src }
}

// WithRedisClient reuses an existing client instead of dialing redis.addr.
func WithRedisClient(c *backend.Client) AppOption {
	return func(o *appOptions) { o.redis = c }
}

// WithAppObserver adds observers receiving every run event.
func WithAppObserver(obs ...ports.Observer) AppOption {
	return func(o *appOptions) { o.observers = append(o.observers, obs...) }
}

// NewApp wires the service: graph source, redis lock and event publisher,
// prometheus metrics, slog event mirror, tracer and node defaults.
func NewApp(cfg config.Config, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewWithFormat(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	}

	app := &App{Config: cfg, Logger: logger, redis: o.redis}
	if app.redis == nil && cfg.Redis.Addr != "" {
		app.redis = redisadapter.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	source := o.source
	if source == nil {
		var err error
		if source, err = app.openSource(); err != nil {
			app.closeRedis()
			return nil, err
		}
	}
	app.Source = source

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		app.closeRedis()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	app.Gatherer = reg

	observers := append([]ports.Observer{observability.NewLog(logger), metrics}, o.observers...)

	svcOpts := []aituberflow.Option{
		aituberflow.WithLogger(logger),
		aituberflow.WithGraphSource(source),
		aituberflow.WithTracer(otel.Tracer("github.com/oboroge0/AITuberFlow-sub001")),
		aituberflow.WithTimeouts(cfg.Executor.SetupTimeout.Std(), cfg.Executor.GraceTimeout.Std()),
		aituberflow.WithPoolSize(cfg.Executor.PoolSize),
		aituberflow.WithRetainedRuns(cfg.Executor.RetainedRuns),
		aituberflow.WithNodeOptions(nodes.WithLLMDefaults(nodes.LLMDefaults{
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			APIKeyEnv: cfg.LLM.APIKeyEnv,
		})),
	}
	if cfg.Commands.File != "" {
		commands, err := process.LoadCommands(cfg.Commands.File)
		if err != nil {
			app.closeRedis()
			return nil, err
		}
		runner := process.NewRunner(process.WithCommands(commands), process.WithBaseDir(cfg.Commands.Dir))
		logger.Debug("Commands loaded", "file", cfg.Commands.File, "names", runner.Commands())
		svcOpts = append(svcOpts, aituberflow.WithNodeOptions(nodes.WithCommandRunner(runner)))
	}
	if app.redis != nil {
		prefix := app.RedisPrefix()
		svcOpts = append(svcOpts, aituberflow.WithLocker(redisadapter.NewLocker(app.redis, prefix, logger), cfg.Redis.LockTTL.Std()))
		observers = append(observers, redisadapter.NewEventPublisher(app.redis, prefix, logger))
	}
	svcOpts = append(svcOpts, aituberflow.WithObserver(observers...))

	svc, err := aituberflow.New(svcOpts...)
	if err != nil {
		app.closeRedis()
		return nil, fmt.Errorf("error initializing service: %w", err)
	}
	app.Service = svc
	return app, nil
}

// RedisPrefix returns the configured key prefix ending in a colon.
func (a *App) RedisPrefix() string {
	prefix := a.Config.Redis.Prefix
	if prefix == "" {
		return redisadapter.DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix
}

// Bridge returns the chat bridge for the configured channels, or nil without redis.
func (a *App) Bridge() *redisadapter.Bridge {
	if a.redis == nil {
		return nil
	}
	return redisadapter.NewBridge(a.redis, a.RedisPrefix(), a.Config.Redis.Channels, a.Service, a.Logger)
}

func (a *App) openSource() (ports.GraphSource, error) {
	dir := a.Config.Graphs.Dir
	switch a.Config.Graphs.Backend {
	case "file", "":
		return file.New(dir), nil
	case "loam":
		l, err := loam.Open(dir)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "memory":
		return memory.NewStore(), nil
	case "redis":
		if a.redis == nil {
			return nil, errors.New("graphs.backend redis needs redis.addr")
		}
		return redisadapter.NewFromClient(a.redis, redisadapter.WithPrefix(a.RedisPrefix())), nil
	default:
		return nil, fmt.Errorf("unknown graphs.backend %q", a.Config.Graphs.Backend)
	}
}

// Close stops every run and releases the redis connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Close(ctx))
	}
	errs = append(errs, a.closeRedis())
	return errors.Join(errs...)
}

func (a *App) closeRedis() error {
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	a.redis = nil
	return err
}
