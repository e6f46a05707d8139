package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/lsp"
)

type symbolOut struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Children  []symbolOut `json:"children,omitempty"`
}

type symbolsResponse struct {
	Success  bool        `json:"success"`
	FilePath string      `json:"file_path"`
	Symbols  []symbolOut `json:"symbols"`
	Count    int         `json:"symbol_count"`
}

func symbolsOut(syms []lsp.DocumentSymbol) []symbolOut {
	out := make([]symbolOut, 0, len(syms))
	for _, s := range syms {
		out = append(out, symbolOut{
			Name:      s.Name,
			Kind:      s.Kind.String(),
			StartLine: s.Range.Start.Line + 1,
			EndLine:   s.Range.End.Line + 1,
			Children:  symbolsOut(s.Children),
		})
	}
	return out
}

func countSymbols(syms []lsp.DocumentSymbol) int {
	n := len(syms)
	for _, s := range syms {
		n += countSymbols(s.Children)
	}
	return n
}

// RegisterSymbolsOverviewTool registers the swift_get_symbols_overview tool.
func RegisterSymbolsOverviewTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_get_symbols_overview",
		mcp.WithDescription(`List the symbol structure of a Swift file.

Returns the hierarchical outline sourcekit-lsp computes for the file: classes, structs, enums, protocols, functions, properties, each with its one-based line span and nested members. Use this to orient in an unfamiliar file before drilling into specific symbols.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}

		rec := deps.Recorder.Begin("swift_get_symbols_overview", "", filePath)

		sess, validated, root, _, err := deps.sessionFor(ctx, filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		syms, err := sess.DocumentSymbols(ctx, validated)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(symbolsResponse{
			Success:  true,
			FilePath: validated,
			Symbols:  symbolsOut(syms),
			Count:    countSymbols(syms),
		}), nil
	}

	s.AddTool(tool, handler)
}
