package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	lifecycleservice "vihadmin/contexts/document-workflow/lifecycle-service"
	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/catalog"
	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/metrics"
	postgresadapter "vihadmin/contexts/document-workflow/lifecycle-service/adapters/postgres"
	redisadapter "vihadmin/contexts/document-workflow/lifecycle-service/adapters/redis"
	workerapp "vihadmin/contexts/document-workflow/lifecycle-service/application/workers"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
	"vihadmin/internal/platform/config"
	"vihadmin/internal/platform/db"
	"vihadmin/internal/platform/httpserver"
	"vihadmin/internal/platform/messaging"
	"vihadmin/internal/platform/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// Runtime is the wiring shared by every process: storage, counters and the
// lifecycle module built on them.
type Runtime struct {
	Config   config.Config
	Module   lifecycleservice.Module
	Database *db.Database
	Registry *prometheus.Registry
	Logger   *slog.Logger

	redis       redis.UniversalClient
	stopTracing func(context.Context) error
}

type APIApp struct {
	runtime *Runtime
	server  *httpserver.Server
}

type WorkerApp struct {
	runtime      *Runtime
	bus          *messaging.Bus
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
}

// BuildRuntime opens the database, applies migrations when autoMigrate is set
// and assembles the lifecycle module.
func BuildRuntime(ctx context.Context, cfg config.Config, process string, autoMigrate bool) (*Runtime, error) {
	logger := observability.NewLogger(nil, cfg.LogFormat, cfg.LogLevel).
		With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)

	registry, err := catalog.LoadRegistry(cfg.FamiliesPath)
	if err != nil {
		return nil, err
	}

	stopTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DatabaseDriver, cfg.PostgresDSN, cfg.SQLitePath)
	if err != nil {
		_ = stopTracing(ctx)
		return nil, err
	}
	if autoMigrate {
		if err := postgresadapter.Migrate(ctx, database.DB, database.Dialect); err != nil {
			_ = database.Close()
			_ = stopTracing(ctx)
			return nil, err
		}
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	runtime := &Runtime{
		Config:      cfg,
		Database:    database,
		Registry:    promRegistry,
		Logger:      logger,
		stopTracing: stopTracing,
	}

	var counters ports.SequenceCounterStore
	if cfg.SequenceBackend == config.SequenceBackendRedis {
		client, err := redisadapter.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = runtime.Close()
			return nil, err
		}
		runtime.redis = client
		counters = redisadapter.NewCounterStore(client, logger)
	}

	repository := postgresadapter.NewRepository(database.DB, logger)
	runtime.Module = lifecycleservice.NewModule(lifecycleservice.Dependencies{
		Store:          repository,
		Counters:       counters,
		Registry:       registry,
		Clock:          postgresadapter.SystemClock{},
		IDGenerator:    postgresadapter.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        metrics.NewPrometheus(promRegistry),
		Logger:         logger,
	})

	logger.Info("runtime built",
		"event", "bootstrap_runtime_built",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"database_driver", cfg.DatabaseDriver,
		"sequence_backend", cfg.SequenceBackend,
	)
	return runtime, nil
}

// Ping checks the database and, when configured, Redis.
func (r *Runtime) Ping(ctx context.Context) error {
	sqlDB, err := r.Database.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if r.redis != nil {
		return r.redis.Ping(ctx).Err()
	}
	return nil
}

func (r *Runtime) Close() error {
	var errs []error
	if r.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, r.stopTracing(ctx))
		cancel()
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.Database != nil {
		errs = append(errs, r.Database.Close())
	}
	return errors.Join(errs...)
}

// Migrate applies the schema to the configured database.
func Migrate(ctx context.Context, cfg config.Config) error {
	database, err := db.Open(cfg.DatabaseDriver, cfg.PostgresDSN, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer database.Close()
	return postgresadapter.Migrate(ctx, database.DB, database.Dialect)
}

func BuildAPI(ctx context.Context, cfg config.Config) (*APIApp, error) {
	runtime, err := BuildRuntime(ctx, cfg, "api", cfg.DatabaseDriver == db.DriverSQLite)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(
		runtime.Module,
		runtime.Logger,
		normalizeAddr(cfg.HTTPPort),
		httpserver.WithGatherer(runtime.Registry),
		httpserver.WithReadiness(runtime.Ping),
	)
	return &APIApp{runtime: runtime, server: server}, nil
}

func BuildWorker(ctx context.Context, cfg config.Config) (*WorkerApp, error) {
	runtime, err := BuildRuntime(ctx, cfg, "worker", false)
	if err != nil {
		return nil, err
	}

	bus, err := newBus(cfg, runtime.Logger)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}

	return &WorkerApp{
		runtime:      runtime,
		bus:          bus,
		outboxRelay:  runtime.Module.OutboxRelay(bus, cfg.OutboxBatchSize),
		pollInterval: cfg.OutboxPollInterval,
	}, nil
}

func newBus(cfg config.Config, logger *slog.Logger) (*messaging.Bus, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured, publishing in process",
			"event", "bootstrap_bus_in_process",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return messaging.NewInProcessBus(logger), nil
	}
	return messaging.NewKafkaBus(cfg.KafkaBrokers, cfg.ServiceName+"-cg", logger)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.runtime.Logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start(ctx)
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.runtime.Logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if _, err := w.outboxRelay.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.runtime.Logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_worker_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	return errors.Join(w.bus.Close(), w.runtime.Close())
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
