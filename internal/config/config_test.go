package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LSP.HandshakeTimeout != 30*time.Second {
		t.Errorf("handshake timeout: got %v", cfg.LSP.HandshakeTimeout)
	}
	if cfg.LSP.RequestTimeout != 15*time.Second {
		t.Errorf("request timeout: got %v", cfg.LSP.RequestTimeout)
	}
	if cfg.LSP.IdleTimeout != 10*time.Minute {
		t.Errorf("idle timeout: got %v", cfg.LSP.IdleTimeout)
	}
	if cfg.Dashboard.Enabled {
		t.Error("dashboard should default off")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.LSP.RequestTimeout != 15*time.Second {
		t.Errorf("defaults not applied: %+v", cfg.LSP)
	}
}

func TestLoadFrom_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "lsp:\n  request_timeout: 5s\ndashboard:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.LSP.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout: got %v, want 5s", cfg.LSP.RequestTimeout)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("dashboard enable lost")
	}
	// Untouched keys keep defaults.
	if cfg.LSP.HandshakeTimeout != 30*time.Second {
		t.Errorf("handshake default lost: %v", cfg.LSP.HandshakeTimeout)
	}
}

func TestLoadFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("lsp: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("malformed config should error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := DefaultConfig()
	want.LSP.Command = "/custom/sourcekit-lsp"
	want.LSP.RequestTimeout = 7 * time.Second
	want.Dashboard.Enabled = true
	want.Dashboard.Addr = "127.0.0.1:9999"

	if err := want.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if got.LSP.Command != want.LSP.Command {
		t.Errorf("command: got %q", got.LSP.Command)
	}
	if got.LSP.RequestTimeout != want.LSP.RequestTimeout {
		t.Errorf("request timeout: got %v", got.LSP.RequestTimeout)
	}
	if got.Dashboard.Addr != want.Dashboard.Addr {
		t.Errorf("addr: got %q", got.Dashboard.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWIFTLENS_LSP_COMMAND", "/opt/swift/bin/sourcekit-lsp")
	t.Setenv("SWIFTLENS_LOG_LEVEL", "debug")
	t.Setenv("SWIFTLENS_DASHBOARD", "true")
	t.Setenv("SWIFTLENS_REQUEST_TIMEOUT", "3s")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.LSP.Command != "/opt/swift/bin/sourcekit-lsp" {
		t.Errorf("command override: got %q", cfg.LSP.Command)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level override: got %q", cfg.LogLevel)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("dashboard override lost")
	}
	if cfg.LSP.RequestTimeout != 3*time.Second {
		t.Errorf("timeout override: got %v", cfg.LSP.RequestTimeout)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("SWIFTLENS_REQUEST_TIMEOUT", "soon")
	t.Setenv("SWIFTLENS_DASHBOARD", "perhaps")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.LSP.RequestTimeout != 15*time.Second {
		t.Errorf("garbage timeout applied: %v", cfg.LSP.RequestTimeout)
	}
	if cfg.Dashboard.Enabled {
		t.Error("garbage bool applied")
	}
}

func TestRegistryConfigBridge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LSP.Command = "/custom/lsp"
	cfg.LSP.Args = []string{"--log-level", "error"}
	cfg.LSP.RequestTimeout = 9 * time.Second

	rc := cfg.RegistryConfig()
	if rc.Process.Command != "/custom/lsp" {
		t.Errorf("process command: got %q", rc.Process.Command)
	}
	if len(rc.Process.Args) != 2 {
		t.Errorf("process args: got %v", rc.Process.Args)
	}
	if rc.Timeouts.Request != 9*time.Second {
		t.Errorf("request timeout: got %v", rc.Timeouts.Request)
	}
	if rc.IdleTimeout != 10*time.Minute {
		t.Errorf("idle timeout: got %v", rc.IdleTimeout)
	}
	if rc.Process.StartupProbe <= 0 {
		t.Error("startup probe not defaulted")
	}
}
