package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/specialistvlad/wfengine/internal/ctxlog"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// opsHandler routes health checks, metrics and the socket.io endpoint.
func (a *App) opsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	if a.telemetry.handler != nil {
		mux.Handle("/metrics", a.telemetry.handler)
	}
	mux.Handle("/socket.io/", a.events.Handler())
	return mux
}

// newOpsServer creates the ops server. It returns nil when the server is
// disabled.
func (a *App) newOpsServer() *http.Server {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Configuring ops server.")
	port := a.config.Server.OpsPort
	if port <= 0 {
		logger.Warn("Ops server not started: disabled")
		return nil
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.opsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveOps blocks until the ops server stops. Graceful shutdown is not an
// error.
func (a *App) serveOps() error {
	logger := ctxlog.FromContext(a.ctx)
	logger.Info("🩺 Ops server starting", "address", fmt.Sprintf("http://localhost%s/health", a.opsServer.Addr))
	if err := a.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Ops server failed unexpectedly", "error", err)
		return err
	}
	return nil
}

func (a *App) closeOpsServer(ctx context.Context) error {
	logger := ctxlog.FromContext(a.ctx)
	if a.opsServer == nil {
		logger.Debug("Ops server was not running.")
		return nil
	}
	logger.Info("🩺 Shutting down ops server...")
	if err := a.opsServer.Shutdown(ctx); err != nil {
		logger.Error("Ops server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Ops server shut down gracefully.")
	return nil
}
