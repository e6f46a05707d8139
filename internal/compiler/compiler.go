// Package compiler runs swiftc type checks for single Swift files and turns
// the compiler's output into structured diagnostics. It backs the validation
// tool and the auto-validate pass after edits; sourcekit-lsp is never
// involved here.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// ErrSwiftcNotFound indicates no Swift compiler is available on PATH.
var ErrSwiftcNotFound = errors.New("swiftc not found")

// DefaultTimeout bounds one type check.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of one type check. Valid means the file type-checks
// with zero errors; warnings and notes do not invalidate it.
type Result struct {
	Valid       bool
	Diagnostics []Diagnostic
}

// Client invokes the Swift compiler. On macOS the toolchain copy is resolved
// through xcrun, same as the LSP backend.
type Client struct {
	command string
	args    []string
	timeout time.Duration
	log     *logging.AppLogger
}

// NewClient returns a client using the platform's standard compiler command.
func NewClient(log *logging.AppLogger) *Client {
	if runtime.GOOS == "darwin" {
		return &Client{command: "xcrun", args: []string{"swiftc"}, timeout: DefaultTimeout, log: log}
	}
	return &Client{command: "swiftc", timeout: DefaultTimeout, log: log}
}

// NewClientCommand returns a client that invokes command with the given
// leading arguments instead of the platform default.
func NewClientCommand(log *logging.AppLogger, command string, args ...string) *Client {
	return &Client{command: command, args: args, timeout: DefaultTimeout, log: log}
}

// Available reports whether the compiler command can be found.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.command)
	return err == nil
}

// ValidateFile type-checks file with the project root as working directory.
// A file that fails to type-check is a successful validation with Valid set
// to false; only a missing compiler or an execution failure is an error.
func (c *Client) ValidateFile(ctx context.Context, file, root string) (Result, error) {
	if !c.Available() {
		return Result{}, fmt.Errorf("%w: %s", ErrSwiftcNotFound, c.command)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.args...), "-typecheck", file)
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = root

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("type check timed out after %v", c.timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("run %s: %w", c.command, runErr)
		}
	}

	diags := ParseDiagnostics(out.String())
	valid := runErr == nil && !HasErrors(diags)
	if !valid && len(diags) == 0 {
		// The compiler failed without a parseable diagnostic; surface the
		// raw output so the failure is not silent.
		diags = append(diags, Diagnostic{Severity: "error", Message: strings.TrimSpace(out.String())})
	}

	if c.log != nil {
		c.log.Debug("type check finished", "file", file, "valid", valid, "diagnostics", len(diags))
	}
	return Result{Valid: valid, Diagnostics: diags}, nil
}
