package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/lsp"
)

// How long to wait for the first publishDiagnostics after opening a
// document. sourcekit-lsp publishes shortly after didOpen once its initial
// analysis finishes.
const diagnosticsWait = 3 * time.Second

type lspDiagnosticOut struct {
	Line      int    `json:"line"`
	Character int    `json:"character"`
	Severity  string `json:"severity"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message"`
}

type lspDiagnosticsResponse struct {
	Success     bool               `json:"success"`
	FilePath    string             `json:"file_path"`
	Diagnostics []lspDiagnosticOut `json:"diagnostics"`
	Count       int                `json:"count"`
}

func lspDiagnosticsOut(diags []lsp.Diagnostic) []lspDiagnosticOut {
	out := make([]lspDiagnosticOut, 0, len(diags))
	for _, d := range diags {
		out = append(out, lspDiagnosticOut{
			Line:      d.Range.Start.Line + 1,
			Character: d.Range.Start.Character + 1,
			Severity:  d.Severity.String(),
			Source:    d.Source,
			Message:   d.Message,
		})
	}
	return out
}

// RegisterDiagnosticsTool registers the swift_lsp_diagnostics tool.
func RegisterDiagnosticsTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_lsp_diagnostics",
		mcp.WithDescription(`Get sourcekit-lsp's current diagnostics for a Swift file.

Returns the errors, warnings and hints the language server has published for the file, with one-based positions. This reflects the server's live analysis; for a definitive compiler verdict use swift_validate_file instead. An empty list means the server sees no issues (or has not analyzed the file yet).`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}

		rec := deps.Recorder.Begin("swift_lsp_diagnostics", "", filePath)

		sess, validated, root, _, err := deps.sessionFor(ctx, filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		diags, err := sess.Diagnostics(ctx, validated, diagnosticsWait)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(lspDiagnosticsResponse{
			Success:     true,
			FilePath:    validated,
			Diagnostics: lspDiagnosticsOut(diags),
			Count:       len(diags),
		}), nil
	}

	s.AddTool(tool, handler)
}
