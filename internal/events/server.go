package events

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zishang520/socket.io/v2/socket"
)

// Server is the socket.io endpoint backed by a Hub.
type Server struct {
	io     *socket.Server
	hub    *Hub
	logger *slog.Logger
}

// NewServer wires socket.io connections to hub.
func NewServer(hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		io:     socket.NewServer(nil, nil),
		hub:    hub,
		logger: logger.With("component", "events"),
	}
	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		s.attach(client)
	})
	return s
}

func (s *Server) attach(client *socket.Socket) {
	id := string(client.Id())
	s.logger.Debug("Client connected.", "client", id)
	client.On(EventSubscribe, func(args ...any) {
		s.hub.Subscribe(context.Background(), id, client, first(args))
	})
	client.On(EventUnsubscribe, func(args ...any) {
		s.hub.Unsubscribe(id, client, first(args))
	})
	client.On("disconnect", func(...any) {
		s.hub.Drop(id)
		s.logger.Debug("Client disconnected.", "client", id)
	})
}

// Handler serves the socket.io protocol. Mount it at /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.io.Close(nil)
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
