// Package mcp provides an MCP (Model Context Protocol) server exposing
// mnemo's conversation memory as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

// Backend answers the memory queries the MCP tools expose.
type Backend interface {
	// Recall ranks the stored turns of a session against query.
	Recall(ctx context.Context, sessionID, query string, topK int) ([]string, error)

	// Sessions lists stored sessions, most recently updated first.
	Sessions(ctx context.Context) ([]*storage.Session, error)
}

type Config struct {
	// Backend serves the memory tools
	Backend Backend

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mnemo",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Backend == nil {
			return nil, errors.New("memory backend is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memoryRecallToolName,
			Description: memoryRecallDescription,
		}, s.handleMemoryRecall)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memorySessionsToolName,
			Description: memorySessionsDescription,
		}, s.handleMemorySessions)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
