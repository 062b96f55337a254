package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harborhq/harbor-helper/internal/router"
)

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the native helper's main message loop on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
}

func runServe(parentCtx context.Context, explicitConfigPath string) error {
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, explicitConfigPath)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.deps.Logger
	logger.Info("harbor-helper starting", "home_dir", a.cfg.Server.HomeDir)

	if err := warmExecutableCache(a); err != nil {
		logger.Warn("executable cache warm-up failed", "error", err)
	}

	if err := a.deps.MCP.Start(ctx); err != nil {
		logger.Warn("mcp auto-start failed", "error", err)
	}

	if !a.cfg.Server.CatalogWorker {
		go a.deps.Catalog.RunWorker(ctx, a.cfg.Catalog.FetchTTL)
	}

	rt := router.New(a.deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Serve(ctx, rt, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error("native-messaging loop exited with error", "error", err)
		}
		return err
	}
}

// warmExecutableCache pre-resolves the package-runner launchers (npx, uvx,
// docker) once at startup so the first install_server a session issues
// doesn't pay the exec.LookPath cost on the hot path.
func warmExecutableCache(a *app) error {
	a.deps.Installer.CheckRuntimes()
	return nil
}
