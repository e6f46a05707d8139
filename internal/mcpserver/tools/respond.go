package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/lsp"
	"github.com/swiftlens/swiftlens/internal/project"
)

// Error type labels surfaced to the agent in every failure payload.
const (
	errValidation      = "validation_error"
	errFileNotFound    = "file_not_found"
	errPermission      = "permission_denied"
	errSymbolNotFound  = "symbol_not_found"
	errSymbolAmbiguous = "symbol_ambiguous"
	errLSPInit         = "lsp_initialization_failed"
	errLSPUnavailable  = "lsp_server_unavailable"
	errLSP             = "lsp_error"
	errEnvironment     = "environment_error"
	errBuild           = "build_error"
	errInternal        = "tool_internal_error"
)

// indexHint is appended to empty cross-file results when the project has no
// index store, so the agent knows the emptiness may be stale rather than true.
const indexHint = "no index store found; run swift_build_index and retry for cross-file results"

// classify maps an error from the lower layers to its error type label.
func classify(err error) string {
	var rpcErr *lsp.RPCError
	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return errFileNotFound
	case errors.Is(err, project.ErrNotReadable), errors.Is(err, project.ErrNotWritable), errors.Is(err, fs.ErrPermission):
		return errPermission
	case errors.Is(err, project.ErrInvalidPath), errors.Is(err, project.ErrNotSwiftFile),
		errors.Is(err, project.ErrIsDirectory), errors.Is(err, project.ErrNotDirectory),
		errors.Is(err, project.ErrFileTooLarge), errors.Is(err, project.ErrNoProjectRoot):
		return errValidation
	case errors.Is(err, lsp.ErrSpawn), errors.Is(err, lsp.ErrHandshakeTimeout), errors.Is(err, lsp.ErrHandshakeNotComplete):
		return errLSPInit
	case errors.Is(err, lsp.ErrBackendDisconnected), errors.Is(err, lsp.ErrSessionClosed), errors.Is(err, lsp.ErrRegistryClosed):
		return errLSPUnavailable
	case errors.Is(err, lsp.ErrRequestTimeout), errors.Is(err, lsp.ErrInvalidResponse), errors.As(err, &rpcErr):
		return errLSP
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errLSP
	default:
		return errInternal
	}
}

// failure is the common error payload shape shared by all tools.
type failure struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// toolError renders a structured failure result. The error is reported
// through the result payload, never the transport, so the agent can read
// the error_type and recover.
func toolError(errType, msg string) *mcp.CallToolResult {
	body, err := json.Marshal(failure{Success: false, Error: msg, ErrorType: errType})
	if err != nil {
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(string(body))
}

// toolErrorFrom classifies err and renders it as a failure result.
func toolErrorFrom(err error) *mcp.CallToolResult {
	return toolError(classify(err), err.Error())
}

// jsonResult marshals a success payload into a text result.
func jsonResult(v any) *mcp.CallToolResult {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(errInternal, fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(body))
}

// positionArgs extracts the one-based line and character arguments shared by
// the position-oriented tools and converts them to zero-based coordinates.
func positionArgs(request mcp.CallToolRequest) (lsp.Position, error) {
	args := request.GetArguments()
	line, err := intArg(args, "line")
	if err != nil {
		return lsp.Position{}, err
	}
	char, err := intArg(args, "character")
	if err != nil {
		return lsp.Position{}, err
	}
	if line < 1 || char < 1 {
		return lsp.Position{}, errors.New("line and character are one-based and must be >= 1")
	}
	return lsp.Position{Line: line - 1, Character: char - 1}, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// settingsFor loads the per-project settings at root. A broken config file is
// logged and replaced by the defaults rather than failing the operation.
func (d *Deps) settingsFor(root string) project.Settings {
	settings, err := project.LoadSettings(root)
	if err != nil {
		if d.Log != nil {
			d.Log.Warn("ignoring broken project config", "root", root, "error", err)
		}
		return project.DefaultSettings()
	}
	return settings
}

// validateWithSettings resolves filePath, finds its project root, and applies
// that project's configured file size cap. The cap lives in .swiftlens.json
// at the root, so path resolution has to come before the size check.
func (d *Deps) validateWithSettings(filePath string) (validated, root string, settings project.Settings, err error) {
	validated, err = project.ValidateSwiftFilePath(filePath)
	if err != nil {
		return "", "", project.Settings{}, err
	}
	root = project.FindRootOrParent(validated)
	settings = d.settingsFor(root)
	if err = project.CheckFileSize(validated, settings.MaxFileSizeMB); err != nil {
		return "", "", project.Settings{}, err
	}
	return validated, root, settings, nil
}

// sessionFor validates the file path, resolves its project root and returns a
// ready session for it. The returned path is the canonical validated path.
func (d *Deps) sessionFor(ctx context.Context, filePath string) (*lsp.Session, string, string, project.Settings, error) {
	validated, root, settings, err := d.validateWithSettings(filePath)
	if err != nil {
		return nil, "", "", settings, err
	}
	sess, err := d.Registry.Acquire(ctx, root)
	if err != nil {
		return nil, "", "", settings, err
	}
	return sess, validated, root, settings, nil
}

// sameFileOnly drops locations outside file, for projects that disable
// cross-file queries.
func sameFileOnly(locs []lsp.Location, file string) []lsp.Location {
	uri := lsp.FilePathToURI(file)
	kept := make([]lsp.Location, 0, len(locs))
	for _, l := range locs {
		if l.URI == uri {
			kept = append(kept, l)
		}
	}
	return kept
}

// queryPosition resolves where a position-based LSP query should point.
// Callers pass either an explicit one-based line/character pair or a
// symbol_name; a named symbol is located through the document outline and
// queried at its selection range.
func queryPosition(ctx context.Context, sess *lsp.Session, file string, request mcp.CallToolRequest) (lsp.Position, error) {
	args := request.GetArguments()
	if name, _ := args["symbol_name"].(string); name != "" {
		if len(name) > maxSymbolNameLen {
			return lsp.Position{}, fmt.Errorf("%w: symbol_name too long", errSymbolBadQuery)
		}
		syms, err := sess.DocumentSymbols(ctx, file)
		if err != nil {
			return lsp.Position{}, err
		}
		sym, err := findSymbol(syms, name)
		if err != nil {
			return lsp.Position{}, err
		}
		return sym.SelectionRange.Start, nil
	}

	pos, err := positionArgs(request)
	if err != nil {
		return lsp.Position{}, fmt.Errorf("%w: %v", errSymbolBadQuery, err)
	}
	return pos, nil
}

var errSymbolBadQuery = errors.New("provide either symbol_name or line and character")

// classifyQueryError labels failures from queryPosition.
func classifyQueryError(err error) (errType, msg string) {
	switch {
	case errors.Is(err, errSymbolMissing):
		return errSymbolNotFound, "symbol not found in file"
	case errors.Is(err, errSymbolManyMatch):
		return errSymbolAmbiguous, "symbol name matches multiple symbols; use a dotted path to disambiguate"
	case errors.Is(err, errSymbolBadQuery):
		return errValidation, err.Error()
	default:
		return classify(err), err.Error()
	}
}

// readFileCapped reads a file that has already passed size validation.
func readFileCapped(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// locationOut is the wire shape for a resolved source location.
type locationOut struct {
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
}

func locationsOut(locs []lsp.Location) []locationOut {
	out := make([]locationOut, 0, len(locs))
	for _, l := range locs {
		out = append(out, locationOut{
			FilePath:  lsp.URIToFilePath(l.URI),
			Line:      l.Range.Start.Line + 1,
			Character: l.Range.Start.Character + 1,
		})
	}
	return out
}
