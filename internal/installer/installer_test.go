package installer

import (
	"context"
	"testing"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func newTestInstaller(t *testing.T) *Installer {
	t.Helper()
	i, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	i.resolver = fakeResolver(map[string]bool{"npx": true, "uvx": true, "docker": true})
	return i
}

func TestInstaller_InstallAndStatus(t *testing.T) {
	i := newTestInstaller(t)
	manifest := harbor.ServerManifest{
		ID:      "gmail",
		Name:    "Gmail",
		Command: "@harbor/gmail-mcp",
		Runtime: harbor.RuntimeSpec{Kind: harbor.RuntimeNodePackageRunner},
	}

	cmd, err := i.Install(context.Background(), manifest)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if cmd.Kind != harbor.RuntimeNodePackageRunner {
		t.Fatalf("expected node runner, got %s", cmd.Kind)
	}

	rec, ok := i.GetStatus("gmail")
	if !ok {
		t.Fatal("expected installed record to exist")
	}
	if rec.InstallState != harbor.InstallInstalled {
		t.Fatalf("expected installed state, got %s", rec.InstallState)
	}
}

func TestInstaller_InstallRejectsEmptyID(t *testing.T) {
	i := newTestInstaller(t)
	if _, err := i.Install(context.Background(), harbor.ServerManifest{Command: "x"}); err == nil {
		t.Fatal("expected error for manifest without id")
	}
}

func TestInstaller_UninstallRemovesRecordAndSecrets(t *testing.T) {
	i := newTestInstaller(t)
	manifest := harbor.ServerManifest{ID: "gmail", Command: "@harbor/gmail-mcp"}
	if _, err := i.Install(context.Background(), manifest); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := i.SetServerSecrets("gmail", map[string]string{"API_KEY": "x"}); err != nil {
		t.Fatalf("SetServerSecrets: %v", err)
	}

	if err := i.Uninstall("gmail"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, ok := i.GetStatus("gmail"); ok {
		t.Fatal("expected record to be gone after uninstall")
	}
	if secrets := i.ServerSecrets("gmail"); secrets != nil {
		t.Fatalf("expected secrets to be gone after uninstall, got %v", secrets)
	}
}

func TestInstaller_MarkRunningAndStopped(t *testing.T) {
	i := newTestInstaller(t)
	manifest := harbor.ServerManifest{ID: "gmail", Command: "@harbor/gmail-mcp"}
	if _, err := i.Install(context.Background(), manifest); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if err := i.MarkRunning("gmail", 123); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	rec, _ := i.GetStatus("gmail")
	if rec.InstallState != harbor.InstallRunning || rec.PID != 123 {
		t.Fatalf("expected running state with pid 123, got %+v", rec)
	}

	if err := i.MarkStopped("gmail", harbor.InstallFailed); err != nil {
		t.Fatalf("MarkStopped: %v", err)
	}
	rec, _ = i.GetStatus("gmail")
	if rec.InstallState != harbor.InstallFailed {
		t.Fatalf("expected failed state, got %s", rec.InstallState)
	}
}

func TestInstaller_LaunchEnvMergesManifestAndSecrets(t *testing.T) {
	i := newTestInstaller(t)
	manifest := harbor.ServerManifest{
		ID:  "gmail",
		Env: map[string]string{"MODE": "prod"},
	}
	if err := i.SetServerSecrets("gmail", map[string]string{"API_KEY": "secret"}); err != nil {
		t.Fatalf("SetServerSecrets: %v", err)
	}

	env := i.LaunchEnv(manifest, []string{"PATH=/usr/bin"})
	found := map[string]bool{}
	for _, kv := range env {
		found[kv] = true
	}
	if !found["PATH=/usr/bin"] {
		t.Fatal("expected process env to be preserved")
	}
	if !found["MODE=prod"] {
		t.Fatal("expected manifest env to be merged in")
	}
	if !found["API_KEY=secret"] {
		t.Fatal("expected secret env to be merged in")
	}
}
