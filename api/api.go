package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/api/mcp"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Server is the API server for the mnemo memory layer. It keeps one
// memory.Manager per session it has served so recall works against a warm
// cache.
type Server struct {
	config    Config
	driver    storage.Driver
	logger    *slog.Logger
	publisher eventstream.Publisher
	app       *fiber.App

	// catalog answers session-level queries. It never activates a session.
	catalog *memory.Manager

	mu       sync.Mutex
	managers map[string]*memory.Manager
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher publishes memory events from every session the server
// manages.
func WithPublisher(publisher eventstream.Publisher) Option {
	return func(s *Server) {
		s.publisher = publisher
	}
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with other components
// (e.g., an interactive chat running in the same process).
func NewServer(config Config, driver storage.Driver, logger *slog.Logger, opts ...Option) (*Server, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	// Session ids taken from route params outlive the request as map keys
	// and manager state, so fiber must not hand out views of its buffers.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		config:   config,
		driver:   driver,
		logger:   logger,
		app:      app,
		managers: make(map[string]*memory.Manager),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.catalog = memory.NewManager(driver, config.Memory, s.managerOptions(logger)...)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Backend: s,
		Logger:  logger,
		Noop:    config.DisableMCP,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", s.handleMetrics)
	app.Get("/sessions", s.handleListSessions)
	app.Post("/sessions", s.handleCreateSession)
	app.Get("/sessions/:id", s.handleGetSession)
	app.Patch("/sessions/:id", s.handleRenameSession)
	app.Delete("/sessions/:id", s.handleDeleteSession)
	app.Get("/sessions/:id/turns", s.handleListTurns)
	app.Post("/sessions/:id/turns", s.handleStoreTurn)
	app.Post("/sessions/:id/recall", s.handleRecall)
	app.Post("/sessions/:id/reabsorb", s.handleReabsorb)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) managerOptions(logger *slog.Logger) []memory.Option {
	opts := []memory.Option{memory.WithLogger(logger)}
	if s.publisher != nil {
		opts = append(opts, memory.WithPublisher(s.publisher))
	}
	return opts
}

// manager returns the memory manager for id, activating one on first use.
// Activation creates the session record when history is enabled.
func (s *Server) manager(ctx context.Context, id string) (*memory.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.managers[id]; ok {
		return m, nil
	}

	m := memory.NewManager(s.driver, s.config.Memory, s.managerOptions(s.logger.With("session_id", id))...)
	if err := m.SetChatID(ctx, id); err != nil {
		return nil, err
	}
	s.managers[id] = m
	return m, nil
}

// existing returns the manager for a session that must already exist.
func (s *Server) existing(ctx context.Context, id string) (*memory.Manager, error) {
	if id == "" {
		return nil, storage.ErrEmptySessionID
	}
	if s.config.Memory.EnableHistory {
		if _, err := s.catalog.Session(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.manager(ctx, id)
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managers, id)
}

// Recall ranks the stored turns of a session against query.
func (s *Server) Recall(ctx context.Context, sessionID, query string, topK int) ([]string, error) {
	m, err := s.existing(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var opts []memory.RecallOption
	if topK > 0 {
		opts = append(opts, memory.WithTopK(topK))
	}
	return m.FindRelevant(ctx, query, opts...), nil
}

// Sessions lists the stored sessions, most recently updated first.
func (s *Server) Sessions(ctx context.Context) ([]*storage.Session, error) {
	return s.catalog.Sessions(ctx)
}
