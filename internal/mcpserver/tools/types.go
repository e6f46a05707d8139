package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/swiftlens/swiftlens/internal/compiler"
	"github.com/swiftlens/swiftlens/internal/dashboard"
	"github.com/swiftlens/swiftlens/internal/logging"
	"github.com/swiftlens/swiftlens/internal/lsp"
)

// ToolServer is the subset of *server.MCPServer the tool registrations need.
type ToolServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Deps carries the shared services every tool handler uses.
type Deps struct {
	Registry *lsp.Registry
	Recorder *dashboard.Recorder
	Compiler *compiler.Client
	Log      *logging.AppLogger

	// LSPCommand is the configured sourcekit-lsp binary, reported by the
	// environment check. Empty means the stock "sourcekit-lsp".
	LSPCommand string
}

// RegisterAll wires every Swift tool onto the server.
func RegisterAll(s ToolServer, deps *Deps) {
	RegisterHoverTool(s, deps)
	RegisterDefinitionTool(s, deps)
	RegisterReferencesTool(s, deps)
	RegisterSymbolsOverviewTool(s, deps)
	RegisterReplaceSymbolBodyTool(s, deps)
	RegisterSearchPatternTool(s, deps)
	RegisterValidateFileTool(s, deps)
	RegisterDiagnosticsTool(s, deps)
	RegisterFileImportsTool(s, deps)
	RegisterCheckEnvironmentTool(s, deps)
	RegisterBuildIndexTool(s, deps)
}
