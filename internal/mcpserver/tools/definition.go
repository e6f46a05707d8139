package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/project"
)

type definitionResponse struct {
	Success     bool          `json:"success"`
	FilePath    string        `json:"file_path"`
	Definitions []locationOut `json:"definitions"`
	Hint        string        `json:"hint,omitempty"`
}

// RegisterDefinitionTool registers the swift_get_symbol_definition tool.
func RegisterDefinitionTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_get_symbol_definition",
		mcp.WithDescription(`Find where a symbol in a Swift file is defined.

Resolves the definition site of a symbol, which may be in another file of the same project. The symbol is addressed either by name (dotted paths like "BankAccount.deposit" select nested symbols) or by one-based cursor position. Cross-file resolution needs an up-to-date index store; if results come back empty unexpectedly, run swift_build_index first.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
		mcp.WithString("symbol_name",
			mcp.Description("Name of the symbol to resolve; alternative to line/character")),
		mcp.WithNumber("line",
			mcp.Description("One-based line number of the symbol")),
		mcp.WithNumber("character",
			mcp.Description("One-based character offset within the line")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}
		rec := deps.Recorder.Begin("swift_get_symbol_definition", "", filePath)

		sess, validated, root, settings, err := deps.sessionFor(ctx, filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		pos, err := queryPosition(ctx, sess, validated, request)
		if err != nil {
			errType, msg := classifyQueryError(err)
			deps.Recorder.End(rec, errType, msg)
			return toolError(errType, msg), nil
		}

		locs, err := sess.Definition(ctx, validated, pos)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		if !settings.EnableCrossFile {
			locs = sameFileOnly(locs, validated)
		}

		resp := definitionResponse{
			Success:     true,
			FilePath:    validated,
			Definitions: locationsOut(locs),
		}
		if len(locs) == 0 && !project.HasIndexStore(root) {
			resp.Hint = indexHint
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(resp), nil
	}

	s.AddTool(tool, handler)
}
