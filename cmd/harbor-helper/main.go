// Command harbor-helper is the native messaging host the browser extension
// launches: it brokers LLM calls, MCP tool execution, and server
// installation on behalf of the in-browser agent, talking length-prefixed
// JSON over stdin/stdout.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "harbor-helper",
		Short:         "Native helper process for the Harbor browser agent",
		Long:          "harbor-helper brokers LLM text generation, MCP tool execution, and installed-server lifecycle for the Harbor browser extension, over framed native-messaging JSON on stdio.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to harbor-helper config YAML (defaults to ~/.harbor/config.yaml if present)")

	root.AddCommand(
		buildServeCmd(),
		buildCatalogWorkerCmd(),
		buildMCPRunnerCmd(),
		buildDoctorCmd(),
	)
	return root
}
