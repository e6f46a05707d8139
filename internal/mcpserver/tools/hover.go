package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/lsp"
)

type hoverResponse struct {
	Success   bool   `json:"success"`
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
	HoverInfo string `json:"hover_info"`
}

// RegisterHoverTool registers the swift_get_hover_info tool.
func RegisterHoverTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_get_hover_info",
		mcp.WithDescription(`Get type information and documentation for the symbol at a position in a Swift file.

Returns the declaration, inferred type and doc comment that sourcekit-lsp knows for the symbol under the cursor. Positions are one-based, matching what editors display.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("One-based line number of the symbol")),
		mcp.WithNumber("character",
			mcp.Required(),
			mcp.Description("One-based character offset within the line")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}
		pos, err := positionArgs(request)
		if err != nil {
			return toolError(errValidation, err.Error()), nil
		}

		rec := deps.Recorder.Begin("swift_get_hover_info", "", filePath)

		sess, validated, root, _, err := deps.sessionFor(ctx, filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		text, err := sess.Hover(ctx, validated, pos)
		if err != nil {
			if errors.Is(err, lsp.ErrInvalidResponse) {
				deps.Recorder.End(rec, errSymbolNotFound, "no symbol at position")
				return toolError(errSymbolNotFound, "no symbol found at the given position"), nil
			}
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(hoverResponse{
			Success:   true,
			FilePath:  validated,
			Line:      pos.Line + 1,
			Character: pos.Character + 1,
			HoverInfo: text,
		}), nil
	}

	s.AddTool(tool, handler)
}
