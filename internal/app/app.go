package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/wfengine/internal/ctxlog"
	"github.com/specialistvlad/wfengine/internal/events"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/registry"
	"github.com/specialistvlad/wfengine/internal/server"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx       context.Context
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	telemetry *telemetry
	api       *server.Server
	events    *events.Server
	opsServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config) *App {
	srv := cfg.Server
	logger := newLogger(srv.LogLevel, srv.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.", "config_path", cfg.ConfigPath)

	// A catalog that does not load is a fatal startup error.
	cat, err := loadCatalog(ctx, srv.CatalogPath)
	if err != nil {
		panic(err)
	}
	tel, err := setupTelemetry(srv.Telemetry.Metrics)
	if err != nil {
		panic(fmt.Errorf("failed to set up telemetry: %w", err))
	}

	reg := registry.New(registry.Options{
		Catalog:        cat,
		Workers:        srv.Execution.Workers,
		Runner:         execstate.DelayRunner{Delay: srv.Execution.NodeDelay},
		MaxHistory:     srv.History.MaxEntries,
		CommandTimeout: srv.CommandTimeout,
		Retain:         srv.Snapshots.Retain,
		BatchWindow:    srv.Snapshots.BatchWindow,
		Logger:         logger,
	})
	logger.Debug("Project registry created.", "workers", srv.Execution.Workers)

	return &App{
		ctx:       ctx,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		telemetry: tel,
		api: server.New(server.Options{
			Registry: reg,
			Catalog:  cat,
			Logger:   logger,
		}),
		events: events.NewServer(events.NewHub(reg, logger), logger),
	}
}

// Registry returns the application's project registry. This is primarily
// for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
