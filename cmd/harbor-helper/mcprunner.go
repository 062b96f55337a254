package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func buildMCPRunnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-runner <server-id>",
		Short: "Connect to one installed MCP server in isolation and hold the connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPRunner(cmd.Context(), configPath, args[0])
		},
	}
}

// runMCPRunner connects to a single installed server outside the main
// helper process, so a misbehaving child (one that hangs or crashes the
// manager's stdio pump) can be diagnosed without tearing down every other
// connection. It exits once the server disconnects or the process is
// signaled.
func runMCPRunner(parentCtx context.Context, explicitConfigPath, serverID string) error {
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, explicitConfigPath)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.deps.Logger.With("server", serverID)

	rec, ok := a.deps.Installer.GetStatus(serverID)
	if !ok {
		return fmt.Errorf("no installed server %q", serverID)
	}

	cmd, err := a.deps.Installer.Install(ctx, rec.Manifest)
	if err != nil {
		return fmt.Errorf("resolve launch command: %w", err)
	}
	registerMCPServer(a.deps, rec.Manifest, cmd)

	if err := a.deps.MCP.Connect(ctx, serverID); err != nil {
		_ = a.deps.Installer.MarkStopped(serverID, harbor.InstallFailed)
		return fmt.Errorf("connect: %w", err)
	}
	defer a.deps.MCP.Disconnect(serverID)

	client, _ := a.deps.MCP.Client(serverID)
	logger.Info("mcp-runner connected", "tools", len(client.Tools()))
	if err := a.deps.Installer.MarkRunning(serverID, 0); err != nil {
		logger.Warn("failed to record running state", "error", err)
	}

	<-ctx.Done()
	logger.Info("mcp-runner shutting down")
	return a.deps.Installer.MarkStopped(serverID, harbor.InstallInstalled)
}
