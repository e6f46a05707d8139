package lsp

import (
	"encoding/json"
	"errors"
	"runtime"
	"testing"
)

func TestFilePathToURI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	tests := []struct {
		path string
		want DocumentURI
	}{
		{"/Users/dev/Project/Sources/main.swift", "file:///Users/dev/Project/Sources/main.swift"},
		{"/tmp/with space/file.swift", "file:///tmp/with%20space/file.swift"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FilePathToURI(tt.path); got != tt.want {
			t.Errorf("FilePathToURI(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestURIToFilePathRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	paths := []string{
		"/Users/dev/Project/Sources/main.swift",
		"/tmp/with space/file.swift",
		"/tmp/unicode/café.swift",
	}
	for _, p := range paths {
		if got := URIToFilePath(FilePathToURI(p)); got != p {
			t.Errorf("round trip of %q = %q", p, got)
		}
	}
}

func TestURIToFilePath_NonFileURI(t *testing.T) {
	if got := URIToFilePath("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Errorf("non-file URI should pass through, got %q", got)
	}
}

func TestParseLocationResult(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"null", `null`, 0},
		{"empty array", `[]`, 0},
		{"single location", `{"uri":"file:///a.swift","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":9}}}`, 1},
		{"location array", `[{"uri":"file:///a.swift","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}},{"uri":"file:///b.swift","range":{"start":{"line":3,"character":0},"end":{"line":3,"character":4}}}]`, 2},
		{"location links", `[{"targetUri":"file:///c.swift","targetRange":{"start":{"line":5,"character":0},"end":{"line":9,"character":1}},"targetSelectionRange":{"start":{"line":5,"character":6},"end":{"line":5,"character":10}}}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs, err := ParseLocationResult(json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("ParseLocationResult() error = %v", err)
			}
			if len(locs) != tt.want {
				t.Errorf("locations: got %d, want %d", len(locs), tt.want)
			}
			for _, loc := range locs {
				if loc.URI == "" {
					t.Error("location with empty URI")
				}
			}
		})
	}
}

func TestParseLocationResult_LinkFields(t *testing.T) {
	input := `[{"targetUri":"file:///c.swift","targetRange":{"start":{"line":5,"character":0},"end":{"line":9,"character":1}}}]`
	locs, err := ParseLocationResult(json.RawMessage(input))
	if err != nil {
		t.Fatalf("ParseLocationResult() error = %v", err)
	}
	if locs[0].URI != "file:///c.swift" {
		t.Errorf("uri: got %q", locs[0].URI)
	}
	if locs[0].Range.Start.Line != 5 || locs[0].Range.End.Line != 9 {
		t.Errorf("range: got %+v", locs[0].Range)
	}
}

func TestParseLocationResult_Garbage(t *testing.T) {
	_, err := ParseLocationResult(json.RawMessage(`42`))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("got %v, want ErrInvalidResponse", err)
	}
}

func TestHoverText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"markup content", `{"kind":"markdown","value":"func greet()"}`, "func greet()"},
		{"plain string", `"just text"`, "just text"},
		{"marked string", `{"language":"swift","value":"let x = 1"}`, "let x = 1"},
		{"array of strings", `["first","second"]`, "first\nsecond"},
		{"mixed array", `[{"language":"swift","value":"var y: Int"},"docs"]`, "var y: Int\ndocs"},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HoverText(json.RawMessage(tt.input)); got != tt.want {
				t.Errorf("HoverText(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSymbolResult_Hierarchical(t *testing.T) {
	input := `[{
		"name":"Greeter","kind":5,
		"range":{"start":{"line":0,"character":0},"end":{"line":10,"character":1}},
		"selectionRange":{"start":{"line":0,"character":6},"end":{"line":0,"character":13}},
		"children":[{
			"name":"greet(name:)","kind":6,
			"range":{"start":{"line":2,"character":4},"end":{"line":4,"character":5}},
			"selectionRange":{"start":{"line":2,"character":9},"end":{"line":2,"character":14}}
		}]
	}]`

	syms, err := ParseSymbolResult(json.RawMessage(input))
	if err != nil {
		t.Fatalf("ParseSymbolResult() error = %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("symbols: got %d, want 1", len(syms))
	}
	if syms[0].Name != "Greeter" || syms[0].Kind != SymbolKindClass {
		t.Errorf("root symbol: got %q kind %v", syms[0].Name, syms[0].Kind)
	}
	if len(syms[0].Children) != 1 || syms[0].Children[0].Name != "greet(name:)" {
		t.Errorf("children: got %+v", syms[0].Children)
	}
}

func TestParseSymbolResult_FlatInformation(t *testing.T) {
	input := `[{
		"name":"Greeter","kind":5,
		"location":{"uri":"file:///a.swift","range":{"start":{"line":0,"character":0},"end":{"line":10,"character":1}}}
	}]`

	syms, err := ParseSymbolResult(json.RawMessage(input))
	if err != nil {
		t.Fatalf("ParseSymbolResult() error = %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("symbols: got %d, want 1", len(syms))
	}
	if syms[0].Name != "Greeter" {
		t.Errorf("name: got %q", syms[0].Name)
	}
	if syms[0].Range.End.Line != 10 {
		t.Errorf("range not carried over from location: %+v", syms[0].Range)
	}
}

func TestParseSymbolResult_Null(t *testing.T) {
	syms, err := ParseSymbolResult(json.RawMessage(`null`))
	if err != nil || syms != nil {
		t.Errorf("got %v, %v; want nil, nil", syms, err)
	}
}

func TestSymbolKindString(t *testing.T) {
	tests := []struct {
		kind SymbolKind
		want string
	}{
		{SymbolKindClass, "Class"},
		{SymbolKindMethod, "Method"},
		{SymbolKindFunction, "Function"},
		{SymbolKindStruct, "Struct"},
		{SymbolKind(999), "Kind(999)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("SymbolKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestHasCapability(t *testing.T) {
	if HasCapability(nil) {
		t.Error("nil capability should be false")
	}
	if HasCapability(false) {
		t.Error("false capability should be false")
	}
	if !HasCapability(true) {
		t.Error("true capability should be true")
	}
	if !HasCapability(map[string]any{"workDoneProgress": true}) {
		t.Error("object capability should be true")
	}
}

func TestDefaultClientCapabilities(t *testing.T) {
	caps := DefaultClientCapabilities()
	if caps.TextDocument == nil {
		t.Fatal("text document capabilities missing")
	}
	if caps.TextDocument.DocumentSymbol == nil || !caps.TextDocument.DocumentSymbol.HierarchicalDocumentSymbolSupport {
		t.Error("hierarchical document symbols must be advertised")
	}
}
