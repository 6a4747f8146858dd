package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// startIndexingTool returns the tool definition for start_indexing
func startIndexingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "start_indexing",
		Description: "Index the configured workspace and start watching it for changes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Query the current indexing state and file queue progress",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// searchWorkspaceTool returns the tool definition for search_workspace
func searchWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_workspace",
		Description: "Search the indexed workspace with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// stopWatcherTool returns the tool definition for stop_watcher
func stopWatcherTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stop_watcher",
		Description: "Stop watching the workspace for file changes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
