package project

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// MaxSwiftFiles caps project-wide file discovery so a scan over a huge
// monorepo cannot run away.
const MaxSwiftFiles = 5000

// ListSwiftFiles walks root and returns every .swift file, skipping the
// excluded directories from settings. Results are sorted and capped at
// MaxSwiftFiles.
func ListSwiftFiles(root string, settings Settings) ([]string, error) {
	excluded := make(map[string]struct{}, len(settings.ExcludeDirectories))
	for _, d := range settings.ExcludeDirectories {
		excluded[d] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".swift") {
			files = append(files, path)
			if len(files) >= MaxSwiftFiles {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewPathError("discover", root, err)
	}

	sort.Strings(files)
	return files, nil
}
