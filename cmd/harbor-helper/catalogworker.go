package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func buildCatalogWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog-worker",
		Short: "Run the catalog refresh loop as a standalone forked process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogWorker(cmd.Context(), configPath)
		},
	}
}

func runCatalogWorker(parentCtx context.Context, explicitConfigPath string) error {
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, explicitConfigPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.deps.Logger.Info("catalog-worker starting", "fetch_ttl", a.cfg.Catalog.FetchTTL)
	a.deps.Catalog.RunWorker(ctx, a.cfg.Catalog.FetchTTL)
	return nil
}
