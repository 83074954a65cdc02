package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/responder"
	"github.com/papercomputeco/chatstream/pkg/storage"
)

// ErrorResponse is the JSON body of every non-success response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the development chat backend.
type Server struct {
	config    Config
	storer    storage.Driver
	responder responder.Responder
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server.
// The storer is injected so callers decide between the in-memory and SQLite
// drivers and own its lifetime.
func NewServer(config Config, storer storage.Driver, l *slog.Logger) (*Server, error) {
	if storer == nil {
		return nil, errors.New("storage driver is required")
	}
	if config.UserID == "" {
		return nil, errors.New("server user id is required")
	}

	resp := config.Responder
	if resp == nil {
		resp = responder.Echo{Delay: config.TokenDelay}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		storer:    storer,
		responder: resp,
		logger:    logger.OrNop(l),
		app:       app,
	}

	app.Get("/ping", s.handlePing)

	chats := app.Group("/api", s.requireBearer)
	chats.Get("/chat/:chatId", s.handleGetChat)
	chats.Post("/chat/:projectId/chats", s.handleCreateChat)
	chats.Post("/chat/:projectId/chats/:chatId/messages/stream", s.handleStream)
	chats.Post("/feedback", s.handleFeedback)

	return s, nil
}

// Handler exposes the server as an http.Handler. Streamed responses are
// buffered in full before they are written.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
