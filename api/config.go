// Package api provides an HTTP API server for storing, recalling and
// inspecting conversation memory.
package api

import "github.com/papercomputeco/mnemo/pkg/memory"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Memory configures the per-session memory managers the server creates.
	Memory memory.Config

	// DisableMCP serves an MCP endpoint with no tools configured.
	DisableMCP bool
}
