// Package app provides the application initialization and lifecycle management
package app

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/tasknest/internal/config"
	"github.com/tildaslashalef/tasknest/internal/connectivity"
	"github.com/tildaslashalef/tasknest/internal/coordinator"
	"github.com/tildaslashalef/tasknest/internal/database"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/note"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/synclog"
	"github.com/tildaslashalef/tasknest/internal/task"
)

// App represents the application instance with its dependencies
type App struct {
	Config      *config.Config
	Monitor     *connectivity.ProbeMonitor
	Tasks       *task.Repository
	Notes       *note.Repository
	SyncLogs    synclog.Repository
	Coordinator *coordinator.Coordinator
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := config.LoadFromEnv("")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
		"device", cfg.Sync.DeviceName,
	)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := database.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app := initServices(cfg, db)

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices wires the repositories, monitor and coordinator together
func initServices(cfg *config.Config, db *sql.DB) *App {
	logger := loggy.GetGlobalLogger()

	monitor := connectivity.NewProbeMonitor(
		cfg.Sync.ProbeURL,
		cfg.Sync.ProbeInterval,
		cfg.Sync.ProbeTimeout,
		logger,
	)

	syncLogs := synclog.NewSQLRepository(db, logger)

	remoteCfg := store.RemoteConfig{
		BaseURL:           cfg.Server.URL,
		Token:             cfg.Server.Token,
		Timeout:           cfg.Server.Timeout,
		MaxRetries:        cfg.Server.MaxRetries,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}

	taskRepo := task.NewRepository(db, remoteCfg, monitor, syncLogs, logger)
	noteRepo := note.NewRepository(db, remoteCfg, monitor, syncLogs, logger)

	coord := coordinator.New(monitor, cfg.Sync.Interval, logger)
	coord.Register(taskRepo)
	coord.Register(noteRepo)

	return &App{
		Config:      cfg,
		Monitor:     monitor,
		Tasks:       taskRepo,
		Notes:       noteRepo,
		SyncLogs:    syncLogs,
		Coordinator: coord,
	}
}

// StartBackground starts the connectivity monitor and the sync
// coordinator. Long-lived callers use this; one-shot CLI commands skip it
// and rely on a single probe instead.
func (app *App) StartBackground() {
	app.Monitor.Start()
	app.Coordinator.Start()
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	app.Coordinator.Stop()
	app.Monitor.Stop()

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
