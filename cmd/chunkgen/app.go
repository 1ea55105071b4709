package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/chunkgen/internal/command"
	"github.com/phrazzld/chunkgen/internal/config"
	"github.com/phrazzld/chunkgen/internal/events"
	"github.com/phrazzld/chunkgen/internal/platform/filestore"
	"github.com/phrazzld/chunkgen/internal/platform/logger"
	"github.com/phrazzld/chunkgen/internal/platform/postgres"
	"github.com/phrazzld/chunkgen/internal/platform/redisstore"
	"github.com/phrazzld/chunkgen/internal/redact"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/phrazzld/chunkgen/internal/world"
)

// application holds the shared dependencies of a chunkgen process and
// releases them on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Backend handles; at most one is set
	db    *sql.DB
	redis *redisstore.ProgressStore

	progressStore task.ProgressStore
	catalog       *world.Catalog
	host          *world.SimulatedHost
	eventEmitter  *events.InMemoryEventEmitter
	manager       *task.Manager
	console       *command.Console
}

// loadApplication loads the configuration at path, sets up logging and
// builds the application around it.
func loadApplication(ctx context.Context, path string, out io.Writer) (*application, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Debug("configuration loaded",
		"store_backend", cfg.Store.Backend,
		"worlds", cfg.World.Names,
		"checkpoint_every", cfg.Task.CheckpointEvery)

	return newApplication(ctx, cfg, log, out)
}

// newApplication creates an application with every dependency
// initialized. Console messages are written to out.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
	}

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	app.catalog = world.NewCatalog(cfg.World.Names)
	defaultWorld, err := app.catalog.Resolve(cfg.DefaultWorld())
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("invalid default world: %w", err)
	}
	app.host = world.NewSimulatedHost(app.catalog, cfg.World.GenerateLatency, log)
	app.eventEmitter = events.NewInMemoryEventEmitter(log)

	defaults := task.Params{
		Region:  defaultWorld,
		CenterX: int64(cfg.Defaults.CenterX),
		CenterZ: int64(cfg.Defaults.CenterZ),
		Radius:  cfg.Defaults.Radius,
		Quiet:   cfg.Defaults.Quiet(),
	}
	app.manager, err = task.NewManager(
		app.progressStore,
		app.host,
		app.eventEmitter,
		defaults,
		task.Config{
			CheckpointEvery: cfg.Task.CheckpointEvery,
			ReportInterval:  cfg.Task.ReportInterval,
		},
		log,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}
	app.manager.SetSilent(cfg.Defaults.Silent)

	app.console = command.NewConsole(app.manager, app.catalog, out, log)
	app.eventEmitter.RegisterHandler(app.console)

	log.Info("application initialized",
		"store_backend", cfg.Store.Backend,
		"default_world", defaultWorld)
	return app, nil
}

// openStore connects the configured progress store backend.
func (app *application) openStore(ctx context.Context) error {
	cfg := app.config.Store

	switch cfg.Backend {
	case config.BackendFile:
		s, err := filestore.Open(cfg.File.Path, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open progress file: %w", err)
		}
		app.progressStore = s

	case config.BackendRedis:
		s, err := redisstore.Connect(ctx, cfg.Redis, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = s
		app.progressStore = s

	case config.BackendPostgres:
		app.logger.Debug("connecting to progress database", "url", redact.String(cfg.Postgres.URL))
		db, err := postgres.Open(ctx, cfg.Postgres.URL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %s", redact.Error(err))
		}
		app.db = db
		app.progressStore = postgres.NewProgressStore(db)

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return nil
}

// shutdown pauses every running task so its progress is saved.
func (app *application) shutdown(ctx context.Context) error {
	if app.manager == nil {
		return nil
	}
	if err := app.manager.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to pause running tasks: %w", err)
	}
	return nil
}

// cleanup releases backend connections.
func (app *application) cleanup() {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error("error closing progress store", "error", err)
	}

	app.logger.Info("application shutdown completed")
}
