package project

import (
	"os"
	"path/filepath"
	"strings"
)

// Root markers, checked in priority order at each ancestor level. A
// Package.swift beats an .xcodeproj in the same directory; a marker closer
// to the file beats any marker further up.
var rootMarkers = []string{
	"Package.swift",
	ConfigFileName,
}

var rootMarkerGlobs = []string{
	"*.xcodeproj",
	"*.xcworkspace",
}

// FindRoot walks from path (a file or directory) toward the filesystem root
// looking for a Swift project marker: Package.swift, a swiftlens project
// config, an .xcodeproj bundle, or an .xcworkspace bundle. It returns the
// directory holding the nearest marker, or ErrNoProjectRoot.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", NewPathError("resolve", path, ErrInvalidPath)
	}

	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if hasRootMarker(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", NewPathError("resolve", path, ErrNoProjectRoot)
		}
		dir = parent
	}
}

// FindRootOrParent resolves the project root for a Swift file, falling back
// to the file's own directory when no marker exists anywhere above it.
// Single-file operations still work that way; only cross-file lookups need
// a real project.
func FindRootOrParent(file string) string {
	if root, err := FindRoot(file); err == nil {
		return root
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.Dir(file)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return abs
	}
	return filepath.Dir(abs)
}

func hasRootMarker(dir string) bool {
	for _, m := range rootMarkers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	for _, g := range rootMarkerGlobs {
		if matches, err := filepath.Glob(filepath.Join(dir, g)); err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

// IndexStorePath returns the SwiftPM index store location under root, or ""
// when no index has been built yet. sourcekit-lsp discovers this itself;
// tools use it to explain why cross-file queries return nothing.
func IndexStorePath(root string) string {
	candidates := []string{
		filepath.Join(root, ".build", "index", "store"),
		filepath.Join(root, ".index-db", "store"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return ""
}

// HasIndexStore reports whether root has a populated index store.
func HasIndexStore(root string) bool {
	return IndexStorePath(root) != ""
}

// IsXcodeProject reports whether root is driven by an Xcode project or
// workspace rather than SwiftPM.
func IsXcodeProject(root string) bool {
	for _, g := range rootMarkerGlobs {
		if matches, err := filepath.Glob(filepath.Join(root, g)); err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

// IsSwiftPMProject reports whether root carries a Package.swift manifest.
func IsSwiftPMProject(root string) bool {
	info, err := os.Stat(filepath.Join(root, "Package.swift"))
	return err == nil && !info.IsDir()
}

// ContainsPath reports whether path sits inside root.
func ContainsPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}
