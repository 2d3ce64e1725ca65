// Package control wires configuration into running updaters and servers.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/txsync/internal/core/clock"
	"github.com/vietddude/txsync/internal/core/config"
	"github.com/vietddude/txsync/internal/indexing/health"
	"github.com/vietddude/txsync/internal/indexing/updater"
	redisclient "github.com/vietddude/txsync/internal/infra/redis"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/storage"
	"github.com/vietddude/txsync/internal/infra/storage/memory"
	"github.com/vietddude/txsync/internal/infra/storage/postgres"
)

// Engine owns every long-running component of the service.
type Engine struct {
	cfg        *config.AppConfig
	clock      *clock.Clock
	repo       storage.TxRecordRepository
	updaters   []*updater.Updater
	providers  []*provider.HTTPProvider
	monitor    *health.Monitor
	httpServer *health.Server
	grpcServer *health.GRPCServer
	db         *postgres.DB
	redis      *redisclient.Client
	log        *slog.Logger
}

// New connects to storage and builds all updaters. Redis is optional:
// without it operator rescans and failed-unit tracking are disabled.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:   cfg,
		clock: clock.New(clock.WithInterval(cfg.Sync.CheckInterval)),
		log:   logger.With("component", "engine"),
	}

	switch cfg.Sync.Storage {
	case "memory":
		e.repo = memory.NewRecordRepo(memory.NewMemoryStorage())
		e.log.Info("Using memory storage")
	default:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		e.db = db
		e.repo = postgres.NewRecordRepo(db)
		e.log.Info("Using PostgreSQL storage")
	}

	deps := updater.Deps{
		Repo:   e.repo,
		Clock:  e.clock,
		Logger: logger,
	}

	var failed health.FailedCounter
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			e.log.Warn("Failed to connect to Redis, rescans disabled", "error", err)
		} else {
			e.redis = rc
			failedRepo := redisclient.NewFailedUnitRepo(rc)
			deps.Rescans = rc
			deps.Failures = failedRepo
			failed = failedRepo
		}
	}

	updaters, providers, err := buildUpdaters(cfg, deps, e.log)
	if err != nil {
		e.close()
		return nil, err
	}
	e.updaters = updaters
	e.providers = providers

	targets := make([]health.Target, len(updaters))
	for i, u := range updaters {
		targets[i] = u
	}
	e.monitor = health.NewMonitor(targets, failed, health.Thresholds{})
	sources := make([]health.ProviderSource, len(providers))
	for i, p := range providers {
		sources[i] = p
	}
	e.monitor.SetProviders(sources...)
	e.httpServer = health.NewServer(e.monitor, cfg.Server.Port, logger)
	if cfg.Server.GRPCPort > 0 {
		e.grpcServer = health.NewGRPCServer(e.monitor, cfg.Server.GRPCPort, 0, logger)
	}
	return e, nil
}

// Updaters returns the configured updaters.
func (e *Engine) Updaters() []*updater.Updater {
	return e.updaters
}

// Repo returns the record repository in use.
func (e *Engine) Repo() storage.TxRecordRepository {
	return e.repo
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down within the configured shutdown timeout.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if e.db != nil {
		e.db.StartMetricsCollector(gctx)
	}

	g.Go(func() error { return e.httpServer.Start() })
	if e.grpcServer != nil {
		g.Go(func() error { return e.grpcServer.Start(gctx) })
	}

	if e.cfg.Sync.IsEnabled() {
		g.Go(func() error {
			e.clock.Run(gctx)
			return nil
		})
		for _, u := range e.updaters {
			g.Go(func() error { return u.Start(gctx) })
		}
		e.log.Info("Sync started", "projects", len(e.updaters))
	} else {
		e.log.Warn("Sync disabled, serving status only")
	}

	g.Go(func() error {
		<-gctx.Done()
		return e.shutdownServers()
	})

	err := g.Wait()
	return errors.Join(err, e.stop())
}

func (e *Engine) shutdownServers() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Sync.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := e.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if e.grpcServer != nil {
		if err := e.grpcServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// stop lets in-flight units finish, then releases connections.
func (e *Engine) stop() error {
	e.log.Info("Stopping engine...")
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Sync.ShutdownTimeout)
	defer cancel()

	var g errgroup.Group
	for _, u := range e.updaters {
		g.Go(func() error { return u.Stop(ctx) })
	}
	err := g.Wait()

	e.close()
	e.log.Info("Engine stopped")
	return err
}

func (e *Engine) close() {
	for _, p := range e.providers {
		_ = p.Close()
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Failed to close database", "error", err)
		}
	}
}
