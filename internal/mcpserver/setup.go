// Package mcpserver assembles the MCP server that exposes the Swift tools.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/swiftlens/swiftlens/internal/mcpserver/tools"
)

const instructions = `This server gives you semantic analysis and editing of Swift code through sourcekit-lsp.

## Workflow

1. swift_check_environment - confirm the toolchain and sourcekit-lsp are available
2. swift_build_index - build the index store once per project; cross-file queries are incomplete without it
3. swift_get_symbols_overview - orient yourself in a file before drilling in
4. swift_get_hover_info / swift_get_symbol_definition / swift_find_symbol_references - inspect specific symbols; positions are one-based
5. swift_replace_symbol_body - rewrite a symbol's implementation in place
6. swift_validate_file / swift_lsp_diagnostics - check a file with the compiler or read the language server's live diagnostics after editing
7. swift_get_file_imports - list the modules a file depends on
8. swift_search_pattern - plain text/regex search when semantic tools are not needed

## Notes

- All file paths must be absolute paths to .swift files inside a project.
- A language server is started per project root on first use and reused afterwards; the first call to a project may take a few seconds.
- Empty definition or reference results on symbols that clearly exist usually mean a stale or missing index; rebuild with swift_build_index.`

// NewServer builds the MCP server with every Swift tool registered.
func NewServer(version string, deps *tools.Deps) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		deps.Log.Debug("tool call", "id", id, "tool", message.Params.Name)
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		deps.Log.Debug("tool done", "id", id, "tool", message.Params.Name, "isError", result != nil && result.IsError)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		deps.Log.Error("protocol error", "id", id, "method", method, "error", err)
	})

	s := server.NewMCPServer(
		"swiftlens",
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithHooks(hooks),
		server.WithInstructions(instructions),
	)

	tools.RegisterAll(s, deps)
	return s
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
