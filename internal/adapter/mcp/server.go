// Package mcp exposes the coach pipeline as Model Context Protocol tools so
// agents and IDEs can run turns and inspect routing decisions.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/service"
)

// TurnRunner runs one user turn.
type TurnRunner interface {
	ProcessUserInput(ctx context.Context, in service.TurnInput) turn.Completed
}

// BindingLister lists the registered worker adapters.
type BindingLister interface {
	Bindings() []service.Binding
}

// ServerConfig holds MCP server identity.
type ServerConfig struct {
	Name    string
	Version string
}

// ServerDeps are the components the tools call. Nil dependencies make the
// matching tool or resource answer with an error result.
type ServerDeps struct {
	Coach    TurnRunner
	Router   service.Router
	Registry BindingLister
}

// Server wraps an mcp-go server and its streamable HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	transport *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server with every tool and resource registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.mcpServer = mcpserver.NewMCPServer(cfg.Name, cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	s.transport = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/tools/mcp"),
		mcpserver.WithStateLess(true),
	)
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler to mount at /tools/mcp.
func (s *Server) Handler() http.Handler {
	return s.transport
}

// Shutdown closes open transport sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.transport.Shutdown(ctx)
}
