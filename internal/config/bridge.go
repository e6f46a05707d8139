package config

import (
	"github.com/swiftlens/swiftlens/internal/lsp"
)

// RegistryConfig translates the server config into the session registry's
// configuration.
func (c Config) RegistryConfig() lsp.RegistryConfig {
	proc := lsp.DefaultProcessConfig()
	if c.LSP.Command != "" {
		proc = lsp.ProcessConfig{
			Command:      c.LSP.Command,
			Args:         c.LSP.Args,
			StartupProbe: proc.StartupProbe,
		}
	}

	return lsp.RegistryConfig{
		Process: proc,
		Timeouts: lsp.Timeouts{
			Handshake: c.LSP.HandshakeTimeout,
			Request:   c.LSP.RequestTimeout,
			Terminate: c.LSP.TerminateGrace,
		},
		IdleTimeout: c.LSP.IdleTimeout,
	}
}
