package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/problemsync/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/problemsync/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/config"
	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/extract"
	"github.com/jonesrussell/north-cloud/problemsync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/problemsync/internal/metrics"
	"github.com/jonesrussell/north-cloud/problemsync/internal/notion"
	"github.com/jonesrussell/north-cloud/problemsync/internal/pipeline"
	"github.com/jonesrussell/north-cloud/problemsync/internal/publish"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
	"github.com/jonesrussell/north-cloud/problemsync/internal/source"
)

// App is the wired dependency graph of a sync run.
type App struct {
	Config       *config.Config
	Logger       logger.Logger
	Store        checkpoint.Store
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Limiter      ratelimit.Limiter
	Notion       *notion.Client
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// OpenStore opens only the checkpoint store, for commands that do not sync.
func OpenStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	store, err := checkpoint.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return store, nil
}

// NewApp wires every component from cfg. The Notion client is only built
// when publishing is enabled.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}

	if err := app.wire(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if a.Limiter, err = a.newLimiter(ctx); err != nil {
		return err
	}

	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	policy := retry.NewPolicy(cfg.Retry)
	f := fetcher.New(
		source.NewColly(cfg.Source, a.Logger),
		a.Limiter,
		policy,
		extract.NewAccessDetector(profile),
		a.Logger,
		fetcher.WithRecorder(a.Metrics),
	)

	builder, err := content.NewBuilder(cfg.Content)
	if err != nil {
		return fmt.Errorf("content builder: %w", err)
	}

	deps := pipeline.Deps{
		Fetcher:   f,
		Extractor: extract.NewEngine(profile),
		Builder:   builder,
		Store:     store,
	}

	if !cfg.Pipeline.SkipPublish {
		if err = cfg.ValidatePublish(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if a.Notion, err = notion.New(cfg.Notion, a.Limiter); err != nil {
			return fmt.Errorf("notion client: %w", err)
		}
		deps.Publisher = publish.New(a.Notion, store, policy, cfg.Publish, a.Logger, publish.WithRecorder(a.Metrics))
	}

	a.Orchestrator = pipeline.New(deps, cfg.Pipeline, a.Logger,
		pipeline.WithSink(pipeline.NewLogSink(a.Logger)),
		pipeline.WithRecorder(a.Metrics),
	)
	return nil
}

func (a *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	cfg := a.Config.RateLimit
	if cfg.Backend != ratelimit.BackendRedis {
		return ratelimit.NewLocal(cfg), nil
	}

	client, err := infraredis.NewClient(ctx, a.Config.Checkpoint.Redis)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return ratelimit.NewRedis(client, cfg), nil
}

// Close releases the store and any Redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
