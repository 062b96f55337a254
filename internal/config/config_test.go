package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.RequestTimeout == 0 {
		t.Fatal("expected default request timeout to be applied")
	}
	if cfg.Catalog.DBPath == "" {
		t.Fatal("expected default catalog db path to be derived from home dir")
	}
}

func TestLoad_OverridesMergeWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harbor.yaml")
	contents := "version: 1\nlogging:\n  level: debug\nllm:\n  default_provider: openai\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging.level to be overridden, got %q", cfg.Logging.Level)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("expected llm.default_provider to be overridden, got %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging.format to survive, got %q", cfg.Logging.Format)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	os.Setenv("HARBOR_TEST_HOME", t.TempDir())
	defer os.Unsetenv("HARBOR_TEST_HOME")

	path := filepath.Join(os.Getenv("HARBOR_TEST_HOME"), "harbor.yaml")
	contents := "version: 1\nserver:\n  home_dir: \"${HARBOR_TEST_HOME}/harbor\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := os.Getenv("HARBOR_TEST_HOME") + "/harbor"
	if cfg.Server.HomeDir != want {
		t.Fatalf("expected expanded home dir %q, got %q", want, cfg.Server.HomeDir)
	}
}

func TestLoad_RejectsMultiDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harbor.yaml")
	contents := "version: 1\n---\nversion: 1\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for multi-document config")
	}
}

func TestValidate_RejectsBadLoggingFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid logging format")
	}
}
