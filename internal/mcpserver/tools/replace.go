package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/lsp"
	"github.com/swiftlens/swiftlens/internal/project"
)

const maxSymbolNameLen = 200

var (
	errSymbolMissing   = errors.New("symbol not found in file")
	errSymbolManyMatch = errors.New("symbol name matches multiple symbols")
	errSymbolNoBody    = errors.New("symbol has no brace-delimited body")
)

type replaceResponse struct {
	Success      bool           `json:"success"`
	FilePath     string         `json:"file_path"`
	SymbolName   string         `json:"symbol_name"`
	Operation    string         `json:"operation"`
	LinesRemoved int            `json:"lines_removed"`
	LinesAdded   int            `json:"lines_added"`
	StartLine    int            `json:"start_line"`
	EndLine      int            `json:"end_line"`
	Validation   *validationOut `json:"validation,omitempty"`
}

// validationOut is the auto-validate summary attached to an edit when the
// project enables auto_validate.
type validationOut struct {
	Valid        bool            `json:"valid"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	Diagnostics  []diagnosticOut `json:"diagnostics,omitempty"`
}

// RegisterReplaceSymbolBodyTool registers the swift_replace_symbol_body tool.
func RegisterReplaceSymbolBodyTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_replace_symbol_body",
		mcp.WithDescription(`Replace the body of a named symbol in a Swift file, preserving its declaration.

The symbol is located via sourcekit-lsp, the body between its braces is swapped for the new content, and the file is rewritten atomically. The language server sees the change immediately, so follow-up queries reflect the new code. Nested symbols can be addressed with dotted paths like "BankAccount.deposit".`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file to modify")),
		mcp.WithString("symbol_name",
			mcp.Required(),
			mcp.Description("Name of the symbol whose body to replace; dotted paths select nested symbols")),
		mcp.WithString("new_body",
			mcp.Required(),
			mcp.Description("New body content, without the surrounding braces")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}
		symbolName, err := request.RequireString("symbol_name")
		if err != nil {
			return toolError(errValidation, "symbol_name parameter is required"), nil
		}
		if symbolName == "" {
			return toolError(errValidation, "symbol_name must be a non-empty string"), nil
		}
		if len(symbolName) > maxSymbolNameLen {
			return toolError(errValidation, "symbol_name too long"), nil
		}
		newBody, err := request.RequireString("new_body")
		if err != nil {
			return toolError(errValidation, "new_body parameter is required"), nil
		}
		if strings.TrimSpace(newBody) == "" {
			return toolError(errValidation, "new_body must be non-empty"), nil
		}

		rec := deps.Recorder.Begin("swift_replace_symbol_body", "", filePath)
		fail := func(errType, msg string) (*mcp.CallToolResult, error) {
			deps.Recorder.End(rec, errType, msg)
			return toolError(errType, msg), nil
		}

		validated, root, settings, err := deps.validateWithSettings(filePath)
		if err != nil {
			return fail(classify(err), err.Error())
		}
		if err := project.CheckWritable(validated); err != nil {
			return fail(classify(err), err.Error())
		}
		rec.ProjectRoot = root

		sess, err := deps.Registry.Acquire(ctx, root)
		if err != nil {
			return fail(classify(err), err.Error())
		}

		syms, err := sess.DocumentSymbols(ctx, validated)
		if err != nil {
			return fail(classify(err), err.Error())
		}

		sym, err := findSymbol(syms, symbolName)
		if err != nil {
			switch {
			case errors.Is(err, errSymbolManyMatch):
				return fail(errSymbolAmbiguous, fmt.Sprintf("%q matches multiple symbols; use a dotted path to disambiguate", symbolName))
			default:
				return fail(errSymbolNotFound, fmt.Sprintf("symbol %q not found in %s", symbolName, validated))
			}
		}

		content, err := readFileCapped(validated)
		if err != nil {
			return fail(classify(err), err.Error())
		}

		editRange, newText, err := bodyEdit(content, sym, newBody)
		if err != nil {
			return fail(errValidation, err.Error())
		}

		removed, added, err := sess.ApplyEdit(ctx, validated, editRange, newText)
		if err != nil {
			return fail(classify(err), err.Error())
		}

		resp := replaceResponse{
			Success:      true,
			FilePath:     validated,
			SymbolName:   symbolName,
			Operation:    "replace_body",
			LinesRemoved: removed,
			LinesAdded:   added,
			StartLine:    editRange.Start.Line + 1,
			EndLine:      editRange.End.Line + 1,
		}
		resp.Validation = deps.autoValidate(ctx, settings, validated, root)

		deps.Recorder.End(rec, "", "")
		return jsonResult(resp), nil
	}

	s.AddTool(tool, handler)
}

// findSymbol locates a symbol by name or dotted path in a symbol tree.
// A bare name matches any symbol whose name equals it; a dotted path must
// match the trailing segments of the symbol's ancestry. Exactly one match
// is required.
func findSymbol(syms []lsp.DocumentSymbol, name string) (lsp.DocumentSymbol, error) {
	query := strings.Split(name, ".")
	var matches []lsp.DocumentSymbol
	collectMatches(syms, nil, query, &matches)
	switch len(matches) {
	case 0:
		return lsp.DocumentSymbol{}, errSymbolMissing
	case 1:
		return matches[0], nil
	default:
		return lsp.DocumentSymbol{}, errSymbolManyMatch
	}
}

func collectMatches(syms []lsp.DocumentSymbol, ancestry []string, query []string, out *[]lsp.DocumentSymbol) {
	for _, s := range syms {
		path := append(ancestry, s.Name)
		if pathMatches(path, query) {
			*out = append(*out, s)
		}
		collectMatches(s.Children, path, query, out)
	}
}

// pathMatches reports whether the trailing segments of path equal query.
// Function names are compared with and without their parameter signature,
// so "deposit" matches the symbol "deposit(amount:)".
func pathMatches(path, query []string) bool {
	if len(query) > len(path) {
		return false
	}
	tail := path[len(path)-len(query):]
	for i, q := range query {
		if !segmentMatches(tail[i], q) {
			return false
		}
	}
	return true
}

func segmentMatches(name, q string) bool {
	if name == q {
		return true
	}
	if base, _, found := strings.Cut(name, "("); found && base == q {
		return true
	}
	return false
}

// bodyEdit computes the range covering the interior of the symbol's braces
// and the replacement text for it, re-indented relative to the closing brace.
func bodyEdit(content string, sym lsp.DocumentSymbol, newBody string) (lsp.Range, string, error) {
	openPos, closePos, err := symbolBraces(content, sym)
	if err != nil {
		return lsp.Range{}, "", err
	}

	lines := strings.Split(content, "\n")
	closeIndent := leadingWhitespace(lines[closePos.Line])

	var b strings.Builder
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.Trim(newBody, "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			b.WriteString(closeIndent)
			b.WriteString("    ")
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	b.WriteString(closeIndent)

	editRange := lsp.Range{
		Start: lsp.Position{Line: openPos.Line, Character: openPos.Character + 1},
		End:   closePos,
	}
	return editRange, b.String(), nil
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// symbolBraces finds the positions of the opening and closing braces of the
// symbol's body. Braces inside string literals and comments are skipped, and
// nested block comments are honored the way the Swift lexer treats them.
func symbolBraces(content string, sym lsp.DocumentSymbol) (openPos, closePos lsp.Position, err error) {
	const (
		stCode = iota
		stLineComment
		stBlockComment
		stString
		stMultiString
	)

	r := []rune(content)
	line, col := 0, 0
	state := stCode
	blockDepth := 0
	depth := 0
	started := false

	peek := func(i, k int) rune {
		if i+k < len(r) {
			return r[i+k]
		}
		return 0
	}
	atOrAfterStart := func() bool {
		return line > sym.Range.Start.Line ||
			(line == sym.Range.Start.Line && col >= sym.Range.Start.Character)
	}
	pastEnd := func() bool {
		return line > sym.Range.End.Line ||
			(line == sym.Range.End.Line && col > sym.Range.End.Character)
	}

	for i := 0; i < len(r); i++ {
		ch := r[i]
		if !started && pastEnd() {
			break
		}

		switch state {
		case stLineComment:
			if ch == '\n' {
				state = stCode
			}
		case stBlockComment:
			if ch == '/' && peek(i, 1) == '*' {
				blockDepth++
				i++
				col++
			} else if ch == '*' && peek(i, 1) == '/' {
				blockDepth--
				i++
				col++
				if blockDepth == 0 {
					state = stCode
				}
			}
		case stString:
			if ch == '\\' {
				i++
				col++
			} else if ch == '"' || ch == '\n' {
				state = stCode
			}
		case stMultiString:
			if ch == '"' && peek(i, 1) == '"' && peek(i, 2) == '"' {
				i += 2
				col += 2
				state = stCode
			}
		case stCode:
			switch {
			case ch == '/' && peek(i, 1) == '/':
				state = stLineComment
				i++
				col++
			case ch == '/' && peek(i, 1) == '*':
				state = stBlockComment
				blockDepth = 1
				i++
				col++
			case ch == '"' && peek(i, 1) == '"' && peek(i, 2) == '"':
				state = stMultiString
				i += 2
				col += 2
			case ch == '"':
				state = stString
			case ch == '{':
				if started {
					depth++
				} else if atOrAfterStart() {
					started = true
					depth = 1
					openPos = lsp.Position{Line: line, Character: col}
				}
			case ch == '}':
				if started {
					depth--
					if depth == 0 {
						return openPos, lsp.Position{Line: line, Character: col}, nil
					}
				}
			}
		}

		if ch == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}

	return lsp.Position{}, lsp.Position{}, errSymbolNoBody
}
