package mcp

import (
	"github.com/ka2n/sitebot/api"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server represents the MCP server for sitebot
type Server struct {
	server *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(app *api.App) *Server {
	s := server.NewMCPServer("sitebot", api.Version)

	registerTools(s, app)

	return &Server{
		server: s,
	}
}

// Run starts the MCP server
func (s *Server) Run() error {
	return server.ServeStdio(s.server)
}

// registerTools registers all available tools with the MCP server
func registerTools(s *server.MCPServer, app *api.App) {
	tools := InitTools(app)
	s.AddTools(tools...)
}

func newServerTool(tool mcp.Tool, handler server.ToolHandlerFunc) server.ServerTool {
	return server.ServerTool{
		Tool:    tool,
		Handler: handler,
	}
}
