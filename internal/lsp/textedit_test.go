package lsp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyRangeEdit(t *testing.T) {
	content := "line one\nline two\nline three\n"

	tests := []struct {
		name        string
		rng         Range
		newText     string
		want        string
		wantRemoved int
		wantAdded   int
	}{
		{
			name:        "replace within one line",
			rng:         Range{Start: Position{Line: 1, Character: 5}, End: Position{Line: 1, Character: 8}},
			newText:     "2",
			want:        "line one\nline 2\nline three\n",
			wantRemoved: 1,
			wantAdded:   1,
		},
		{
			name:        "replace across lines",
			rng:         Range{Start: Position{Line: 0, Character: 0}, End: Position{Line: 1, Character: 8}},
			newText:     "merged",
			want:        "merged\nline three\n",
			wantRemoved: 2,
			wantAdded:   1,
		},
		{
			name:        "insert at empty range",
			rng:         Range{Start: Position{Line: 2, Character: 0}, End: Position{Line: 2, Character: 0}},
			newText:     "inserted ",
			want:        "line one\nline two\ninserted line three\n",
			wantRemoved: 1,
			wantAdded:   1,
		},
		{
			name:        "expand one line to three",
			rng:         Range{Start: Position{Line: 1, Character: 0}, End: Position{Line: 1, Character: 8}},
			newText:     "a\nb\nc",
			want:        "line one\na\nb\nc\nline three\n",
			wantRemoved: 1,
			wantAdded:   3,
		},
		{
			name:        "character clamped to line end",
			rng:         Range{Start: Position{Line: 0, Character: 5}, End: Position{Line: 0, Character: 999}},
			newText:     "1",
			want:        "line 1\nline two\nline three\n",
			wantRemoved: 1,
			wantAdded:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, removed, added, err := applyRangeEdit(content, tt.rng, tt.newText)
			if err != nil {
				t.Fatalf("applyRangeEdit() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("content:\ngot  %q\nwant %q", got, tt.want)
			}
			if removed != tt.wantRemoved || added != tt.wantAdded {
				t.Errorf("counts: got -%d/+%d, want -%d/+%d", removed, added, tt.wantRemoved, tt.wantAdded)
			}
		})
	}
}

func TestApplyRangeEdit_Errors(t *testing.T) {
	content := "only line\n"

	tests := []struct {
		name string
		rng  Range
	}{
		{
			name: "end before start",
			rng:  Range{Start: Position{Line: 0, Character: 5}, End: Position{Line: 0, Character: 2}},
		},
		{
			name: "negative line",
			rng:  Range{Start: Position{Line: -1, Character: 0}, End: Position{Line: 0, Character: 0}},
		},
		{
			name: "line far past end",
			rng:  Range{Start: Position{Line: 10, Character: 0}, End: Position{Line: 11, Character: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := applyRangeEdit(content, tt.rng, "x"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApplyRangeEdit_MultibyteCharacters(t *testing.T) {
	content := "let café = 1\n"

	rng := Range{Start: Position{Line: 0, Character: 4}, End: Position{Line: 0, Character: 8}}
	got, _, _, err := applyRangeEdit(content, rng, "shop")
	if err != nil {
		t.Fatalf("applyRangeEdit() error = %v", err)
	}
	if got != "let shop = 1\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.swift")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := writeFileAtomic(path, []byte("new content")); err != nil {
		t.Fatalf("writeFileAtomic() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new content" {
		t.Errorf("content: got %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode: got %v, want 0600", info.Mode().Perm())
	}

	// No stray temp files left in the directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriteFileAtomic_MissingTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.swift")
	if err := writeFileAtomic(path, []byte("x")); err == nil {
		t.Error("expected an error for a missing target")
	}
}
