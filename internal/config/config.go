package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// AppName is used for XDG config and data directories.
const AppName = "swiftlens"

// Config holds the server-wide configuration. Per-project options live in
// .swiftlens.json at each project root, not here.
type Config struct {
	// LSP configures the sourcekit-lsp backend processes.
	LSP LSPConfig `yaml:"lsp"`

	// Dashboard configures the optional local observability dashboard.
	Dashboard DashboardConfig `yaml:"dashboard"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// LSPConfig configures backend process launch and deadlines.
type LSPConfig struct {
	// Command overrides the sourcekit-lsp launcher. Empty means the
	// platform default (xcrun sourcekit-lsp on macOS).
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// HandshakeTimeout bounds the initialize exchange. Generous on
	// purpose; a cold project may index on first load.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// RequestTimeout bounds each steady-state operation.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TerminateGrace is how long shutdown waits before killing.
	TerminateGrace time.Duration `yaml:"terminate_grace"`

	// IdleTimeout evicts sessions unused for this long. Zero disables.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DashboardConfig configures the local web dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`

	// DBPath is where execution logs are stored. Empty means the XDG
	// data directory.
	DBPath string `yaml:"db_path,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LSP: LSPConfig{
			HandshakeTimeout: 30 * time.Second,
			RequestTimeout:   15 * time.Second,
			TerminateGrace:   5 * time.Second,
			IdleTimeout:      10 * time.Minute,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Addr:    "127.0.0.1:53729",
		},
		LogLevel: "warn",
	}
}

// Path returns the standard config file location for the platform.
func Path() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DataDir returns the standard data directory for the platform.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Load reads the config file from the standard location, fills defaults for
// anything it omits, and applies environment overrides. A missing file is
// not an error; the defaults simply apply.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads config from a specific path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("no config file, using defaults", "path", path)
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	logging.Debug("loaded config", "path", path)
	return applyEnv(cfg), nil
}

// Save writes the config to the standard location.
func (c Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to a specific path.
func (c Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DBPathOrDefault resolves the dashboard database location.
func (c Config) DBPathOrDefault() string {
	if c.Dashboard.DBPath != "" {
		return c.Dashboard.DBPath
	}
	return filepath.Join(DataDir(), "dashboard")
}

// applyEnv layers SWIFTLENS_* environment overrides on top of cfg. The MCP
// host config is often the only place a user can set anything, and it can
// only pass environment variables.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("SWIFTLENS_LSP_COMMAND"); v != "" {
		cfg.LSP.Command = v
		cfg.LSP.Args = nil
	}
	if v := os.Getenv("SWIFTLENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SWIFTLENS_DASHBOARD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dashboard.Enabled = b
		}
	}
	if v := os.Getenv("SWIFTLENS_DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := os.Getenv("SWIFTLENS_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LSP.RequestTimeout = d
		}
	}
	if v := os.Getenv("SWIFTLENS_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.LSP.IdleTimeout = d
		}
	}
	return cfg
}
