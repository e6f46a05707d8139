package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/swiftlens/swiftlens/internal/compiler"
	"github.com/swiftlens/swiftlens/internal/logging"
)

type fakeToolServer struct {
	tools    map[string]mcp.Tool
	handlers map[string]server.ToolHandlerFunc
}

func newFakeToolServer() *fakeToolServer {
	return &fakeToolServer{
		tools:    make(map[string]mcp.Tool),
		handlers: make(map[string]server.ToolHandlerFunc),
	}
}

func (f *fakeToolServer) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	f.tools[tool.Name] = tool
	f.handlers[tool.Name] = handler
}

func testDeps() *Deps {
	return &Deps{
		Compiler: compiler.NewClientCommand(nil, "no-such-swiftc-binary"),
		Log:      logging.Nop(),
	}
}

// stubCompilerDeps returns deps whose compiler is a shell script that prints
// output to stderr and exits with code.
func stubCompilerDeps(t *testing.T, output string, code int) *Deps {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	script := fmt.Sprintf("#!/bin/sh\ncat <<'EOF' >&2\n%sEOF\nexit %d\n", output, code)
	path := filepath.Join(t.TempDir(), "fake-swiftc.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub compiler: %v", err)
	}
	return &Deps{
		Compiler: compiler.NewClientCommand(nil, "sh", path),
		Log:      logging.Nop(),
	}
}

// swiftFile writes a throwaway .swift file and returns its path.
func swiftFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.swift")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write swift file: %v", err)
	}
	return path
}

func TestRegisterAll(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	want := []string{
		"swift_get_hover_info",
		"swift_get_symbol_definition",
		"swift_find_symbol_references",
		"swift_get_symbols_overview",
		"swift_replace_symbol_body",
		"swift_search_pattern",
		"swift_validate_file",
		"swift_lsp_diagnostics",
		"swift_get_file_imports",
		"swift_check_environment",
		"swift_build_index",
	}
	for _, name := range want {
		if _, ok := s.handlers[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
	if len(s.handlers) != len(want) {
		t.Errorf("registered %d tools, want %d", len(s.handlers), len(want))
	}
}

func callTool(t *testing.T, s *fakeToolServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h, ok := s.handlers[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	res, err := h(context.Background(), callReq(args))
	if err != nil {
		t.Fatalf("handler returned transport error: %v", err)
	}
	return res
}

func assertFailure(t *testing.T, res *mcp.CallToolResult, wantType string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected error result, got %s", resultText(t, res))
	}
	var f failure
	if err := json.Unmarshal([]byte(resultText(t, res)), &f); err != nil {
		t.Fatalf("failure payload not JSON: %v", err)
	}
	if f.ErrorType != wantType {
		t.Errorf("error_type = %q, want %q (error: %s)", f.ErrorType, wantType, f.Error)
	}
}

func TestHandlers_MissingRequiredParams(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	tests := []struct {
		tool string
		args map[string]any
	}{
		{"swift_get_hover_info", map[string]any{}},
		{"swift_get_hover_info", map[string]any{"file_path": "/a.swift"}},
		{"swift_get_symbol_definition", map[string]any{}},
		{"swift_find_symbol_references", map[string]any{"line": float64(1), "character": float64(1)}},
		{"swift_get_symbols_overview", map[string]any{}},
		{"swift_replace_symbol_body", map[string]any{"file_path": "/a.swift"}},
		{"swift_search_pattern", map[string]any{"file_path": "/a.swift"}},
		{"swift_validate_file", map[string]any{}},
		{"swift_lsp_diagnostics", map[string]any{}},
		{"swift_get_file_imports", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assertFailure(t, callTool(t, s, tt.tool, tt.args), errValidation)
		})
	}
}

func TestHandlers_PathValidationBeforeSession(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	// Path validation fails up front, so no registry is touched even though
	// these deps carry none.
	res := callTool(t, s, "swift_get_hover_info", map[string]any{
		"file_path": "/definitely/not/there.swift",
		"line":      float64(1),
		"character": float64(1),
	})
	assertFailure(t, res, errFileNotFound)

	res = callTool(t, s, "swift_get_symbols_overview", map[string]any{
		"file_path": "\x00bad",
	})
	assertFailure(t, res, errValidation)
}

func TestReplaceSymbolBody_ParamValidation(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	base := func() map[string]any {
		return map[string]any{
			"file_path":   "/proj/a.swift",
			"symbol_name": "greet",
			"new_body":    "return 1",
		}
	}

	empty := base()
	empty["symbol_name"] = ""
	assertFailure(t, callTool(t, s, "swift_replace_symbol_body", empty), errValidation)

	long := base()
	long["symbol_name"] = string(make([]byte, maxSymbolNameLen+1))
	assertFailure(t, callTool(t, s, "swift_replace_symbol_body", long), errValidation)

	blank := base()
	blank["new_body"] = "  \n\t "
	assertFailure(t, callTool(t, s, "swift_replace_symbol_body", blank), errValidation)
}

func TestSearchPattern_ParamValidation(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	assertFailure(t, callTool(t, s, "swift_search_pattern", map[string]any{
		"file_path": "/proj/a.swift",
		"pattern":   "(bad",
		"is_regex":  true,
	}), errValidation)

	assertFailure(t, callTool(t, s, "swift_search_pattern", map[string]any{
		"file_path": "/proj/a.swift",
		"pattern":   "x",
		"flags":     "z",
	}), errValidation)
}

func TestBuildIndex_RejectsMissingProject(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	res := callTool(t, s, "swift_build_index", map[string]any{
		"project_path": "/definitely/not/a/project",
	})
	assertFailure(t, res, errFileNotFound)
}

func TestBuildIndex_NoProjectMarkers(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	res := callTool(t, s, "swift_build_index", map[string]any{
		"project_path": t.TempDir(),
	})
	assertFailure(t, res, errValidation)
}

func TestValidateFile_ReportsCompilerDiagnostics(t *testing.T) {
	file := swiftFile(t, "let n: Int = \"five\"\n")
	output := fmt.Sprintf(`%s:1:14: error: cannot convert value of type 'String' to specified type 'Int'
let n: Int = "five"
             ^
`, file)

	s := newFakeToolServer()
	RegisterAll(s, stubCompilerDeps(t, output, 1))

	res := callTool(t, s, "swift_validate_file", map[string]any{"file_path": file})
	if res.IsError {
		t.Fatalf("a failing type check is still a successful call: %s", resultText(t, res))
	}

	var resp validateResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if resp.Valid {
		t.Error("valid = true for a file with a type error")
	}
	if resp.ErrorCount != 1 || len(resp.Diagnostics) != 1 {
		t.Fatalf("diagnostics: got %d errors, %d entries", resp.ErrorCount, len(resp.Diagnostics))
	}
	d := resp.Diagnostics[0]
	if d.Line != 1 || d.Column != 14 || d.Severity != "error" {
		t.Errorf("diagnostic: got %+v", d)
	}
}

func TestValidateFile_CleanFile(t *testing.T) {
	file := swiftFile(t, "let n = 5\n")

	s := newFakeToolServer()
	RegisterAll(s, stubCompilerDeps(t, "", 0))

	res := callTool(t, s, "swift_validate_file", map[string]any{"file_path": file})
	var resp validateResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if !resp.Valid || resp.ErrorCount != 0 {
		t.Errorf("clean file: valid=%v errors=%d", resp.Valid, resp.ErrorCount)
	}
}

func TestValidateFile_MissingCompiler(t *testing.T) {
	file := swiftFile(t, "let n = 5\n")

	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	res := callTool(t, s, "swift_validate_file", map[string]any{"file_path": file})
	assertFailure(t, res, errEnvironment)
}

func TestFileImports(t *testing.T) {
	file := swiftFile(t, `import Foundation
@testable import MyAppCore
import class UIKit.UIView
// import Commented
/*
import AlsoCommented
*/
import Foundation
`)

	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	res := callTool(t, s, "swift_get_file_imports", map[string]any{"file_path": file})
	if res.IsError {
		t.Fatalf("unexpected failure: %s", resultText(t, res))
	}

	var resp fileImportsResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	want := []string{"Foundation", "MyAppCore", "UIKit.UIView"}
	if resp.Count != len(want) {
		t.Fatalf("imports: got %v, want %v", resp.Imports, want)
	}
	for i, imp := range want {
		if resp.Imports[i] != imp {
			t.Errorf("imports[%d] = %q, want %q", i, resp.Imports[i], imp)
		}
	}
}

func TestProjectSettings_MaxFileSizeHonored(t *testing.T) {
	dir := t.TempDir()
	config := `{"max_file_size": 1}`
	if err := os.WriteFile(filepath.Join(dir, ".swiftlens.json"), []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	big := filepath.Join(dir, "big.swift")
	if err := os.WriteFile(big, []byte(strings.Repeat("// padding line\n", 100_000)), 0o644); err != nil {
		t.Fatalf("write big file: %v", err)
	}

	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	// The file is ~1.6MB: over the project's 1MB cap, under the 10MB default.
	res := callTool(t, s, "swift_get_file_imports", map[string]any{"file_path": big})
	assertFailure(t, res, errValidation)

	// Same file with no project config passes the default cap.
	noConfig := t.TempDir()
	big2 := filepath.Join(noConfig, "big.swift")
	if err := os.WriteFile(big2, []byte(strings.Repeat("// padding line\n", 100_000)), 0o644); err != nil {
		t.Fatalf("write big file: %v", err)
	}
	res = callTool(t, s, "swift_get_file_imports", map[string]any{"file_path": big2})
	if res.IsError {
		t.Fatalf("default cap should admit the file: %s", resultText(t, res))
	}
}

func TestCheckEnvironment_AlwaysSucceeds(t *testing.T) {
	s := newFakeToolServer()
	RegisterAll(s, testDeps())

	res := callTool(t, s, "swift_check_environment", map[string]any{
		"project_path": t.TempDir(),
	})
	if res.IsError {
		t.Fatalf("environment check should report, not fail: %s", resultText(t, res))
	}

	var resp environmentResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Environment.ProjectType != "none" {
		t.Errorf("project_type = %q, want none for empty dir", resp.Environment.ProjectType)
	}
	if resp.Ready && len(resp.Recommendations) > 0 {
		t.Error("ready=true with outstanding recommendations")
	}
}
