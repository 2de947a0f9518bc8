// Package mcp exposes the gateway's debug tools over the Model Context
// Protocol.
//
// The 12-tool catalogue is the entire surface an agent sees:
//
// Read-only state:
//   - debug_list_sessions: list live debug sessions
//   - debug_active_session: the currently active session
//   - debug_list_breakpoints: all breakpoints across all files
//   - debug_call_stack: call stack of the active session
//   - debug_variables: variables of a frame of the active session
//   - debug_list_configurations: launch configurations visible to the caller
//
// Mutations:
//   - debug_set_breakpoint / debug_remove_breakpoint
//   - debug_step / debug_continue
//   - debug_start: launch a configuration (consent-gated)
//   - debug_stop: stop the active session
//
// Every call is written to the audit trail, and errors surfaced to the
// caller carry no internal detail.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/dapguard/dapguard/internal/audit"
	"github.com/dapguard/dapguard/internal/registry"
	"github.com/dapguard/dapguard/internal/version"
)

// Server wraps the MCP server around the session registry.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
	log       *audit.Logger
}

// NewServer creates the gateway MCP server and registers the tool catalogue.
func NewServer(reg *registry.Registry, log *audit.Logger) *Server {
	if log == nil {
		log = audit.Nop()
	}

	mcpServer := server.NewMCPServer(
		"dapguard",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		registry:  reg,
		log:       log,
	}

	s.registerTools()

	return s
}

// ServeStdio starts the server using stdio transport. It blocks until the
// client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Registry returns the underlying session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
