// Package mcp implements the Model Context Protocol (MCP) server for
// the workspace indexer.
//
// The MCP server exposes four tools to AI coding assistants:
//   - start_indexing: Index the configured workspace and begin watching it
//   - index_status: Query the current state and file queue progress
//   - search_workspace: Search the indexed workspace with natural language
//   - stop_watcher: Stop watching the workspace for changes
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Tool: start_indexing
//
// Kicks off one indexing attempt for the workspace the server was
// launched with. Precondition failures (not configured, no workspace,
// already running) come back as JSON-RPC errors; failures after indexing
// begins are absorbed into the state machine and reported by the tool's
// status payload:
//
//	Response:
//	{
//	  "state": "indexed",
//	  "message": "workspace indexed",
//	  "progress": {"queued": 247, "processed": 247, "failed": 0}
//	}
//
// # Tool: search_workspace
//
//	Request:
//	{
//	  "name": "search_workspace",
//	  "arguments": {
//	    "query": "user authentication logic",
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "query": "user authentication logic",
//	  "count": 2,
//	  "results": [
//	    {"path": "internal/auth/service.go", "score": 0.92},
//	    {"path": "internal/auth/token.go", "score": 0.87}
//	  ]
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (store, filesystem, embedding provider)
//   - -32001: Indexing is not configured
//   - -32002: No resolvable workspace folder
//   - -32003: Indexing already in progress
//   - -32004: Workspace not indexed
//   - -32005: Empty query
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
package mcp
