package app

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/wfengine/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful stop of the servers.
const shutdownTimeout = 5 * time.Second

// Run serves the API and the ops endpoints until ctx is done or one of the
// servers fails, then stops everything.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.opsServer = a.newOpsServer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.api.Listen(a.config.Server.Listen)
	})
	if a.opsServer != nil {
		g.Go(a.serveOps)
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	a.logger.Info("🚀 wfengine started.", "listen", a.config.Server.Listen, "ops_port", a.config.Server.OpsPort)
	err := g.Wait()
	a.logger.Info("🏁 wfengine stopped.")
	return err
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := []error{a.api.Shutdown(ctx), a.closeOpsServer(ctx)}
	a.events.Close()
	a.registry.Close()
	errs = append(errs, a.telemetry.shutdown(ctx))
	return errors.Join(errs...)
}
