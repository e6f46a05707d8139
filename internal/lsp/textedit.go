package lsp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// applyRangeEdit replaces rng in content with newText and reports how many
// lines the edit removed and added. Positions are zero-based line/character
// offsets; character offsets are interpreted as rune offsets within a line.
func applyRangeEdit(content string, rng Range, newText string) (updated string, removed, added int, err error) {
	lines := strings.SplitAfter(content, "\n")

	startOff, err := positionOffset(lines, rng.Start)
	if err != nil {
		return "", 0, 0, err
	}
	endOff, err := positionOffset(lines, rng.End)
	if err != nil {
		return "", 0, 0, err
	}
	if endOff < startOff {
		return "", 0, 0, fmt.Errorf("invalid range: end before start")
	}

	old := content[startOff:endOff]
	updated = content[:startOff] + newText + content[endOff:]

	removed = strings.Count(old, "\n") + 1
	added = strings.Count(newText, "\n") + 1
	return updated, removed, added, nil
}

// positionOffset converts a zero-based line/character position into a byte
// offset. A position one line past the end addresses end-of-file.
func positionOffset(lines []string, pos Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("invalid position %d:%d", pos.Line, pos.Character)
	}

	off := 0
	for i := 0; i < pos.Line; i++ {
		if i >= len(lines) {
			return 0, fmt.Errorf("position line %d past end of file", pos.Line)
		}
		off += len(lines[i])
	}

	if pos.Line >= len(lines) {
		return off, nil // end of file
	}

	runes := []rune(strings.TrimRight(lines[pos.Line], "\n"))
	if pos.Character > len(runes) {
		return off + len(string(runes)), nil // clamp to end of line
	}
	return off + len(string(runes[:pos.Character])), nil
}

// writeFileAtomic writes data to path via a temp file and rename, preserving
// the original mode. A failed write never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, info.Mode()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
