package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swiftlens/swiftlens/internal/config"
)

var (
	flagConfigPath    string
	flagLSPCommand    string
	flagLogLevel      string
	flagDashboard     bool
	flagDashboardAddr string

	rootCmd = &cobra.Command{
		Use:   "swiftlens",
		Short: "MCP server exposing Swift code analysis through sourcekit-lsp",
		Long: `swiftlens bridges AI agents to sourcekit-lsp over the Model Context
Protocol. It manages one language server per Swift project, keeps sessions
warm across tool calls, and exposes hover, definition, references, symbol
outline, body replacement, pattern search and index management as tools.

Run without arguments to serve MCP over stdin/stdout.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:          "serve",
		Short:        "Serve MCP over stdin/stdout (the default command)",
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("swiftlens %s (%s)\n", version, commit)
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.Path())
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Println(config.Path())
			return nil
		},
	}
)

func init() {
	// RunE is assigned here rather than in the composite literals above to
	// avoid an initialization cycle: runServe -> loadConfig -> rootCmd.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}
	serveCmd.RunE = rootCmd.RunE

	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLSPCommand, "lsp-command", "", "sourcekit-lsp binary to launch")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagDashboard, "dashboard", false, "enable the local web dashboard")
	rootCmd.PersistentFlags().StringVar(&flagDashboardAddr, "dashboard-addr", "", "dashboard listen address")

	configCmd.AddCommand(configPathCmd, configInitCmd)
	rootCmd.AddCommand(serveCmd, versionCmd, configCmd)
}

// loadConfig resolves the effective configuration from file, environment
// and command line flags, highest priority last.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if flagConfigPath != "" {
		cfg, err = config.LoadFrom(flagConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if flagLSPCommand != "" {
		cfg.LSP.Command = flagLSPCommand
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if rootCmd.PersistentFlags().Changed("dashboard") {
		cfg.Dashboard.Enabled = flagDashboard
	}
	if flagDashboardAddr != "" {
		cfg.Dashboard.Addr = flagDashboardAddr
	}
	return cfg, nil
}
