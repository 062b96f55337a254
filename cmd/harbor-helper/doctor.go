package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func buildDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run startup diagnostics and report what's misconfigured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), configPath)
		},
	}
}

type doctorCheck struct {
	name string
	ok   bool
	note string
}

// runDoctor builds the same composition root serve would, then inspects it
// instead of handing it to the message loop. A config or home-dir failure
// here is fatal; everything else degrades to a reported check so one bad
// MCP server or missing API key doesn't hide other problems.
func runDoctor(ctx context.Context, explicitConfigPath string) error {
	a, err := buildApp(ctx, explicitConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stdout, "FAIL  startup: %v\n", err)
		return err
	}
	defer a.Close()

	var checks []doctorCheck

	checks = append(checks, doctorCheck{name: "home directory", ok: true, note: a.cfg.Server.HomeDir})

	runtimes := a.deps.Installer.CheckRuntimes()
	for kind, available := range runtimes {
		checks = append(checks, doctorCheck{
			name: fmt.Sprintf("runtime %s", kind),
			ok:   available,
			note: availabilityNote(available),
		})
	}

	providers := a.deps.LLMRouter.Providers()
	if len(providers) == 0 {
		checks = append(checks, doctorCheck{name: "llm providers", ok: false, note: "no provider registered, set an API key env var and enable it in config"})
	}
	for _, name := range providers {
		checks = append(checks, doctorCheck{name: fmt.Sprintf("llm provider %s", name), ok: true})
	}

	installed := a.deps.Installer.ListInstalled()
	checks = append(checks, doctorCheck{
		name: "installed mcp servers",
		ok:   true,
		note: fmt.Sprintf("%d recorded", len(installed)),
	})

	allOK := true
	for _, c := range checks {
		status := "ok"
		if !c.ok {
			status = "FAIL"
			allOK = false
		}
		if c.note != "" {
			fmt.Fprintf(os.Stdout, "%-4s  %-28s %s\n", status, c.name, c.note)
		} else {
			fmt.Fprintf(os.Stdout, "%-4s  %s\n", status, c.name)
		}
	}

	if !allOK {
		return fmt.Errorf("one or more doctor checks failed")
	}
	return nil
}

func availabilityNote(available bool) string {
	if available {
		return "available"
	}
	return "not found on PATH"
}
