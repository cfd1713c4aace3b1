package server

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/registry"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// DefaultWaitTimeout bounds requests that wait for an execution to finish.
const DefaultWaitTimeout = 30 * time.Second

// Options configure a Server.
type Options struct {
	Registry *registry.Registry
	Catalog  *catalog.Catalog
	// WaitTimeout bounds state changes that ask to wait for completion.
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	app     *fiber.App
	reg     *registry.Registry
	catalog *catalog.Catalog
	wait    time.Duration
	logger  *slog.Logger
}

// New builds the API and registers its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	s := &Server{
		reg:     opts.Registry,
		catalog: opts.Catalog,
		wait:    opts.WaitTimeout,
		logger:  opts.Logger.With("component", "api"),
	}
	s.app = fiber.New(fiber.Config{
		AppName:      "wfengine",
		ErrorHandler: s.handleError,
	})
	s.app.Use(s.logRequest)
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves the API on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("🌐 API server starting", "address", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("🌐 Shutting down API server...")
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/catalog", s.listCatalog)

	api.Post("/projects", s.openProject)
	api.Get("/projects", s.listProjects)
	api.Delete("/projects/:pid", s.closeProject)

	api.Get("/projects/:pid/workflows/:wid", s.getWorkflow)
	wf := api.Group("/projects/:pid/workflows/:wid")
	wf.Get("/diff", s.getDiff)
	wf.Post("/commands", s.executeCommand)
	wf.Post("/undo", s.undo)
	wf.Post("/redo", s.redo)
	wf.Post("/nodes/state", s.changeNodeState)
	wf.Post("/nodes/:nid/loop", s.changeLoopState)
}

func (s *Server) logRequest(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	attrs := []any{"method", c.Method(), "path", c.Path(), "duration", time.Since(start)}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Debug("Request handled.", attrs...)
	return err
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	kind := wferr.KindOf(err)
	status, msg := statusFor(kind), wferr.Message(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, kind, msg = fe.Code, kindForStatus(fe.Code), fe.Message
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed.", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"kind": kind, "message": msg},
	})
}

func statusFor(kind wferr.Kind) int {
	switch kind {
	case wferr.KindNotFound:
		return fiber.StatusNotFound
	case wferr.KindOperationNotAllowed:
		return fiber.StatusConflict
	case wferr.KindInvalidInput:
		return fiber.StatusBadRequest
	case wferr.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func kindForStatus(status int) wferr.Kind {
	switch {
	case status == fiber.StatusNotFound:
		return wferr.KindNotFound
	case status == fiber.StatusMethodNotAllowed:
		return wferr.KindOperationNotAllowed
	case status >= 400 && status < 500:
		return wferr.KindInvalidInput
	default:
		return wferr.KindInternal
	}
}

func (s *Server) project(c fiber.Ctx) (*registry.Project, error) {
	return s.reg.Get(c.Params("pid"))
}

// container parses the workflow id of the route. Clients may escape the
// colons of nested ids.
func container(c fiber.Ctx) (nodeid.ID, error) {
	return pathID(c, "wid")
}

func pathID(c fiber.Ctx, name string) (nodeid.ID, error) {
	const op = "server.pathID"
	raw, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", wferr.Wrap(wferr.KindInvalidInput, op, err, "Malformed id %q", c.Params(name))
	}
	id, err := nodeid.Parse(raw)
	if err != nil {
		return "", wferr.Wrap(wferr.KindInvalidInput, op, err, "Malformed id %q", raw)
	}
	return id, nil
}

func bind(c fiber.Ctx, v any) error {
	if err := c.Bind().JSON(v); err != nil {
		return wferr.Wrap(wferr.KindInvalidInput, "server.bind", err, "Malformed request body")
	}
	return nil
}
