// Package logging provides structured logging for swiftlens.
//
// Logs always go to stderr (or a file when SWIFTLENS_DEBUG is set): stdout
// carries MCP stdio framing and must never be written to.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// AppLogger wraps charmbracelet/log with the keyval API used across the app.
type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetDefault returns the process-wide logger, creating it on first use.
func GetDefault() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger()
	})
	return defaultLogger
}

// Package-level convenience functions.
func Info(msg string, keyvals ...any)  { GetDefault().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { GetDefault().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { GetDefault().Error(msg, keyvals...) }
func Debug(msg string, keyvals ...any) { GetDefault().Debug(msg, keyvals...) }

// NewAppLogger creates a logger. With SWIFTLENS_DEBUG set, debug-level logs
// are written to swiftlens.log in the working directory (truncated each run);
// otherwise warnings and errors go to stderr.
func NewAppLogger() *AppLogger {
	debug := os.Getenv("SWIFTLENS_DEBUG") != ""

	var logger *log.Logger

	if debug {
		cwd, err := os.Getwd()
		if err != nil {
			panic(fmt.Sprintf("failed to get working directory: %v", err))
		}

		logPath := filepath.Join(cwd, "swiftlens.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			panic(fmt.Sprintf("failed to create debug log file: %v", err))
		}

		logger = log.NewWithOptions(logFile, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "swiftlens",
		})
		logger.SetLevel(log.DebugLevel)
		logger.Info("Debug logging enabled", "log_file", logPath)
	} else {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: false,
			Prefix:          "swiftlens",
		})
		logger.SetLevel(log.WarnLevel)
	}

	return &AppLogger{logger: logger, debug: debug}
}

// NewTestLogger creates a logger that writes to the given writer at debug
// level. Used in tests.
func NewTestLogger(w io.Writer) *AppLogger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "test"})
	logger.SetLevel(log.DebugLevel)
	return &AppLogger{logger: logger, debug: true}
}

// Nop returns a logger that discards everything.
func Nop() *AppLogger {
	logger := log.New(io.Discard)
	return &AppLogger{logger: logger}
}

// With returns a logger with the given keyvals attached to every message.
func (l *AppLogger) With(keyvals ...any) *AppLogger {
	return &AppLogger{logger: l.logger.With(keyvals...), debug: l.debug}
}

// SetLevel adjusts the minimum level by name: debug, info, warn, error.
func (l *AppLogger) SetLevel(level string) {
	switch level {
	case "debug":
		l.logger.SetLevel(log.DebugLevel)
	case "info":
		l.logger.SetLevel(log.InfoLevel)
	case "warn":
		l.logger.SetLevel(log.WarnLevel)
	case "error":
		l.logger.SetLevel(log.ErrorLevel)
	}
}

// Info logs an informational message.
func (l *AppLogger) Info(msg string, keyvals ...any) {
	l.logger.Info(msg, keyvals...)
}

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, keyvals ...any) {
	l.logger.Warn(msg, keyvals...)
}

// Error logs an error message.
func (l *AppLogger) Error(msg string, keyvals ...any) {
	l.logger.Error(msg, keyvals...)
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, keyvals ...any) {
	l.logger.Debug(msg, keyvals...)
}

// IsDebug reports whether debug logging is active.
func (l *AppLogger) IsDebug() bool {
	return l.debug
}
