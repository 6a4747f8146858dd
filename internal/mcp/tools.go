package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"codeindex/internal/orchestrator"
	"codeindex/internal/state"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotConfigured      = -32001 // Indexing is not configured
	ErrorCodeNoWorkspace        = -32002 // No resolvable workspace folder
	ErrorCodeIndexingInProgress = -32003 // Another indexing run is already active
	ErrorCodeNotIndexed         = -32004 // Workspace not indexed yet
	ErrorCodeEmptyQuery         = -32005 // Query parameter is empty
)

// handleStartIndexing handles the start_indexing tool invocation
func (s *Server) handleStartIndexing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.orch.StartIndexing(ctx); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNotConfigured):
			return nil, newMCPError(ErrorCodeNotConfigured, "indexing is not configured", nil)
		case errors.Is(err, orchestrator.ErrNoWorkspace):
			return nil, newMCPError(ErrorCodeNoWorkspace, "workspace folder is not resolvable", nil)
		case errors.Is(err, orchestrator.ErrIndexingInProgress):
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		default:
			return nil, newMCPError(ErrorCodeInternalError, "start indexing failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Post-start failures surface through the state machine, not the
	// return value.
	return mcp.NewToolResultText(formatJSON(s.statusResponse())), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.statusResponse())), nil
}

// handleSearchWorkspace handles the search_workspace tool invocation
func (s *Server) handleSearchWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	if status, _ := s.orch.States().State(); status != state.StatusIndexed {
		return nil, newMCPError(ErrorCodeNotIndexed, "workspace is not indexed", map[string]interface{}{
			"state": status.String(),
		})
	}

	results, err := s.orch.Search(ctx, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	matches := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		matches = append(matches, map[string]interface{}{
			"path":  r.Path,
			"score": r.Score,
		})
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStopWatcher handles the stop_watcher tool invocation
func (s *Server) handleStopWatcher(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.orch.StopWatcher()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"stopped": true,
	})), nil
}

// statusResponse snapshots the state machine and progress counters.
func (s *Server) statusResponse() map[string]interface{} {
	status, message := s.orch.States().State()
	progress := s.orch.States().Progress()
	return map[string]interface{}{
		"state":   status.String(),
		"message": message,
		"progress": map[string]interface{}{
			"queued":    progress.Queued,
			"processed": progress.Processed,
			"failed":    progress.Failed,
		},
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
