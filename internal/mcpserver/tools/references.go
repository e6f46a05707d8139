package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/project"
)

type referencesResponse struct {
	Success    bool          `json:"success"`
	FilePath   string        `json:"file_path"`
	References []locationOut `json:"references"`
	Count      int           `json:"count"`
	Hint       string        `json:"hint,omitempty"`
}

// RegisterReferencesTool registers the swift_find_symbol_references tool.
func RegisterReferencesTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_find_symbol_references",
		mcp.WithDescription(`Find every reference to a symbol across the project.

The symbol is addressed either by name (dotted paths like "BankAccount.deposit" select nested symbols) or by one-based cursor position. An empty result is normal for unused symbols, but cross-file references need an up-to-date index store; if references you expect are missing, run swift_build_index first.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
		mcp.WithString("symbol_name",
			mcp.Description("Name of the symbol to look up; alternative to line/character")),
		mcp.WithNumber("line",
			mcp.Description("One-based line number of the symbol")),
		mcp.WithNumber("character",
			mcp.Description("One-based character offset within the line")),
		mcp.WithBoolean("include_declaration",
			mcp.Description("Include the declaration itself in the results (default true)")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}
		includeDecl := boolArg(request.GetArguments(), "include_declaration", true)

		rec := deps.Recorder.Begin("swift_find_symbol_references", "", filePath)

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

		locs, err := sess.References(ctx, validated, pos, includeDecl)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		if !settings.EnableCrossFile {
			locs = sameFileOnly(locs, validated)
		}

		resp := referencesResponse{
			Success:    true,
			FilePath:   validated,
			References: locationsOut(locs),
			Count:      len(locs),
		}
		if len(locs) == 0 && !project.HasIndexStore(root) {
			resp.Hint = indexHint
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(resp), nil
	}

	s.AddTool(tool, handler)
}
