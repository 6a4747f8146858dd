package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"codeindex/internal/orchestrator"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the indexing orchestrator.
type Server struct {
	mcp  *server.MCPServer
	orch *orchestrator.Orchestrator
}

// NewServer creates a new MCP server instance over an orchestrator. The
// orchestrator's collaborators (vector store, embedder, state manager)
// are wired by the caller.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:  mcpServer,
		orch: orch,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.orch.StopWatcher()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(startIndexingTool(), s.handleStartIndexing)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(searchWorkspaceTool(), s.handleSearchWorkspace)
	s.mcp.AddTool(stopWatcherTool(), s.handleStopWatcher)
}
