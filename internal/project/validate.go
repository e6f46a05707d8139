package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Validation limits.
const (
	// MaxPathLength bounds the resolved path length.
	MaxPathLength = 4096

	// DefaultMaxFileSizeMB is the default per-file size cap.
	DefaultMaxFileSizeMB = 10
)

// ValidateSwiftFilePath checks that path names a readable, regular .swift
// file and returns the resolved absolute path. Symlinks are resolved so the
// path handed to the backend is canonical. The size cap is checked
// separately, because the cap comes from per-project settings that can only
// be loaded once the project root is known.
func ValidateSwiftFilePath(path string) (string, error) {
	resolved, err := validatePath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewPathError("validate", path, ErrNotFound)
		}
		return "", NewPathError("validate", path, err)
	}
	if info.IsDir() {
		return "", NewPathError("validate", path, ErrIsDirectory)
	}
	if !info.Mode().IsRegular() {
		return "", NewPathError("validate", path, fmt.Errorf("not a regular file"))
	}

	if !strings.HasSuffix(resolved, ".swift") {
		return "", NewPathError("validate", path, ErrNotSwiftFile)
	}

	if unix.Access(resolved, unix.R_OK) != nil {
		return "", NewPathError("validate", path, ErrNotReadable)
	}

	return resolved, nil
}

// CheckFileSize verifies that the already-resolved file fits under maxSizeMB.
func CheckFileSize(resolved string, maxSizeMB int) error {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxFileSizeMB
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return NewPathError("validate", resolved, err)
	}
	if info.Size() > int64(maxSizeMB)*1024*1024 {
		return NewPathError("validate", resolved,
			fmt.Errorf("%w: %.1fMB (limit: %dMB)", ErrFileTooLarge, float64(info.Size())/(1024*1024), maxSizeMB))
	}
	return nil
}

// ValidateSwiftFile runs ValidateSwiftFilePath plus the size check.
func ValidateSwiftFile(path string, maxSizeMB int) (string, error) {
	resolved, err := ValidateSwiftFilePath(path)
	if err != nil {
		return "", err
	}
	if err := CheckFileSize(resolved, maxSizeMB); err != nil {
		return "", err
	}
	return resolved, nil
}

// CheckWritable verifies write permission on an already-resolved file.
func CheckWritable(resolved string) error {
	if unix.Access(resolved, unix.W_OK) != nil {
		return NewPathError("validate", resolved, ErrNotWritable)
	}
	return nil
}


// ValidateProjectDir checks that path names a readable, writable directory
// and returns the resolved absolute path.
func ValidateProjectDir(path string) (string, error) {
	resolved, err := validatePath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewPathError("validate", path, ErrNotFound)
		}
		return "", NewPathError("validate", path, err)
	}
	if !info.IsDir() {
		return "", NewPathError("validate", path, ErrNotDirectory)
	}

	if unix.Access(resolved, unix.R_OK|unix.W_OK) != nil {
		return "", NewPathError("validate", path, ErrNotWritable)
	}

	return resolved, nil
}

// validatePath rejects malformed input and canonicalizes the rest.
func validatePath(path string) (string, error) {
	if path == "" {
		return "", NewPathError("validate", path, fmt.Errorf("%w: empty", ErrInvalidPath))
	}
	if strings.ContainsRune(path, 0) {
		return "", NewPathError("validate", path, fmt.Errorf("%w: null byte", ErrInvalidPath))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", NewPathError("validate", path, ErrInvalidPath)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewPathError("validate", path, ErrNotFound)
		}
		return "", NewPathError("validate", path, ErrInvalidPath)
	}

	if len(resolved) > MaxPathLength {
		return "", NewPathError("validate", path, fmt.Errorf("%w: too long", ErrInvalidPath))
	}
	return resolved, nil
}
