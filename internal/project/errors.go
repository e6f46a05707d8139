package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNoProjectRoot indicates no Swift project marker was found in any
	// ancestor directory.
	ErrNoProjectRoot = errors.New("no Swift project root found")

	// ErrNotFound indicates a file or directory was not found.
	ErrNotFound = errors.New("not found")

	// ErrNotSwiftFile indicates the path does not name a .swift source file.
	ErrNotSwiftFile = errors.New("not a Swift file")

	// ErrIsDirectory indicates the path is a directory, not a file.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotDirectory indicates the path is a file, not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrFileTooLarge indicates the file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidPath indicates a malformed path (null bytes, excessive length).
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotReadable indicates the file cannot be read.
	ErrNotReadable = errors.New("file not readable")

	// ErrNotWritable indicates the file cannot be written.
	ErrNotWritable = errors.New("file not writable")
)

// PathError represents an error associated with a file path.
type PathError struct {
	Op   string // Operation that failed (resolve, validate, read, etc.)
	Path string // File path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a new PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotFound returns true if the error indicates a file was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoProjectRoot returns true if the error indicates root detection failed.
func IsNoProjectRoot(err error) bool {
	return errors.Is(err, ErrNoProjectRoot)
}
