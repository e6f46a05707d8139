package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swiftlens/swiftlens/internal/compiler"
	"github.com/swiftlens/swiftlens/internal/dashboard"
	"github.com/swiftlens/swiftlens/internal/logging"
	"github.com/swiftlens/swiftlens/internal/lsp"
	"github.com/swiftlens/swiftlens/internal/mcpserver"
	"github.com/swiftlens/swiftlens/internal/mcpserver/tools"
)

const shutdownGrace = 5 * time.Second

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.NewAppLogger()
	log.SetLevel(cfg.LogLevel)
	log.Info("starting swiftlens", "version", version, "lsp", cfg.LSP.Command)

	registry := lsp.NewRegistry(cfg.RegistryConfig(), log)
	registry.StartIdleMonitor()
	defer registry.ShutdownAll()

	deps := &tools.Deps{
		Registry:   registry,
		Compiler:   compiler.NewClient(log),
		Log:        log,
		LSPCommand: cfg.LSP.Command,
	}

	var (
		store  *dashboard.Store
		dash   *dashboard.Server
		dashWG chan error
	)
	if cfg.Dashboard.Enabled {
		store, err = dashboard.OpenStore(dashboard.StoreConfig{Path: cfg.DBPathOrDefault()}, log)
		if err != nil {
			return fmt.Errorf("open dashboard store: %w", err)
		}
		defer store.Close()

		hub := dashboard.NewHub(log)
		dash = dashboard.NewServer(store, hub, log)
		deps.Recorder = dashboard.NewRecorder(store, hub, log)

		dashWG = make(chan error, 1)
		go func() {
			dashWG <- dash.Start(cfg.Dashboard.Addr)
		}()
	}

	srv := mcpserver.NewServer(version, deps)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- mcpserver.ServeStdio(srv)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-serveErr:
		if err != nil {
			log.Error("server stopped", "error", err)
		}
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig)
		err = nil
	}

	if dash != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if derr := dash.Shutdown(ctx); derr != nil {
			log.Warn("dashboard shutdown", "error", derr)
		}
		select {
		case <-dashWG:
		case <-ctx.Done():
		}
	}

	return err
}
