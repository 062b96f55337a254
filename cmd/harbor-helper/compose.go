package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/harborhq/harbor-helper/internal/agentloop"
	"github.com/harborhq/harbor-helper/internal/broker"
	"github.com/harborhq/harbor-helper/internal/catalog"
	"github.com/harborhq/harbor-helper/internal/config"
	"github.com/harborhq/harbor-helper/internal/installer"
	"github.com/harborhq/harbor-helper/internal/llm"
	"github.com/harborhq/harbor-helper/internal/mcpmgr"
	"github.com/harborhq/harbor-helper/internal/oauthbroker"
	"github.com/harborhq/harbor-helper/internal/router"
)

// app bundles every long-lived subsystem the serve loop and the forked
// special-run-mode subcommands share, plus the cleanup each one owns.
type app struct {
	cfg      *config.Config
	deps     *router.Deps
	catalogDB *catalog.DB
	closers  []func() error
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := home + "/.harbor/config.yaml"
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// buildApp loads config and wires every subsystem into a composition root,
// the same shape cmd/nexus's gateway.ManagedServer construction follows:
// config load, then one constructor call per subsystem in dependency order.
func buildApp(ctx context.Context, explicitConfigPath string) (*app, error) {
	cfg, err := config.Load(resolveConfigPath(explicitConfigPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg)
	a := &app{cfg: cfg}

	if err := os.MkdirAll(cfg.Server.HomeDir, 0o700); err != nil {
		return nil, fmt.Errorf("create home dir: %w", err)
	}

	grantStore, err := broker.NewGrantStore(cfg.Broker.GrantsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open grant store: %w", err)
	}
	perms := broker.New(grantStore, nil)
	sessions := broker.NewSessionManager()

	mcpMgr := mcpmgr.NewManager(&mcpmgr.Config{Enabled: cfg.MCP.Enabled}, logger)

	inst, err := installer.New(cfg.Server.HomeDir, installer.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open installer: %w", err)
	}

	tokenStore, err := oauthbroker.NewTokenStore(cfg.OAuth.TokensPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	var listener *oauthbroker.CallbackListener
	if cfg.OAuth.CallbackAddr != "" {
		listener, err = oauthbroker.NewCallbackListener(cfg.OAuth.CallbackAddr)
		if err != nil {
			logger.Warn("oauth callback listener unavailable, flows requiring host/user auth will fail", "error", err)
		}
	}
	oauth := oauthbroker.New(tokenStore, map[string]oauthbroker.Provider{}, listener)

	catalogDB, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	a.catalogDB = catalogDB
	catalogMgr := catalog.NewManager(catalogDB, buildCatalogProviders(cfg), cfg.Catalog.FetchTTL, catalog.WithLogger(logger))

	llmRouter := llm.NewRouter(cfg.LLM.DefaultProvider)
	registerLLMProviders(ctx, llmRouter, cfg, logger)

	toolRegistry := agentloop.NewToolRegistry()
	toolRegistry.ReplaceAll(mcpmgr.BridgeTools(mcpMgr, nil))
	orchestrator := agentloop.NewOrchestrator(llmRouter, toolRegistry, perms, agentloop.DefaultConfig(), logger)

	a.deps = &router.Deps{
		Broker:       perms,
		Sessions:     sessions,
		MCP:          mcpMgr,
		Catalog:      catalogMgr,
		Installer:    inst,
		OAuth:        oauth,
		Orchestrator: orchestrator,
		ToolRegistry: toolRegistry,
		LLMRouter:    llmRouter,
		Logger:       logger,
	}
	a.closers = append(a.closers, catalogDB.Close, mcpMgr.Stop)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.deps.Logger.Warn("cleanup error during shutdown", "error", err)
		}
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.Logging.AddSource}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func buildCatalogProviders(cfg *config.Config) []catalog.Provider {
	var providers []catalog.Provider
	if cfg.Catalog.Registry.Enabled {
		providers = append(providers, catalog.NewRegistryProvider(cfg.Catalog.Registry.BaseURL, cfg.Catalog.Registry.PageSize, http.DefaultClient))
	}
	if cfg.Catalog.Curated.Enabled {
		providers = append(providers, catalog.NewCuratedProvider(cfg.Catalog.Curated.Path))
	}
	if cfg.Catalog.Readme.Enabled {
		providers = append(providers, catalog.NewReadmeProvider(cfg.Catalog.Readme.Repos, http.DefaultClient))
	}
	return providers
}

// registerLLMProviders wires in every hosted/local adapter whose
// prerequisites (API key env var, etc.) are actually present, so a helper
// with no Bedrock credentials configured still starts and simply has one
// fewer provider in the router rather than failing to boot.
func registerLLMProviders(ctx context.Context, r *llm.Router, cfg *config.Config, logger *slog.Logger) {
	if cfg.LLM.Anthropic.Enabled {
		if key := os.Getenv(cfg.LLM.Anthropic.APIKeyEnv); key != "" {
			p, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: key, BaseURL: cfg.LLM.Anthropic.BaseURL, DefaultModel: cfg.LLM.Anthropic.DefaultModel})
			if err != nil {
				logger.Warn("anthropic provider unavailable", "error", err)
			} else {
				r.Register(p)
			}
		}
	}
	if cfg.LLM.OpenAI.Enabled {
		if key := os.Getenv(cfg.LLM.OpenAI.APIKeyEnv); key != "" {
			p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: key, DefaultModel: cfg.LLM.OpenAI.DefaultModel})
			if err != nil {
				logger.Warn("openai provider unavailable", "error", err)
			} else {
				r.Register(p)
			}
		}
	}
	if cfg.LLM.Bedrock.Enabled {
		p, err := llm.NewBedrockProvider(ctx, llm.BedrockConfig{Region: cfg.LLM.Bedrock.Region, DefaultModel: cfg.LLM.Bedrock.DefaultModel})
		if err != nil {
			logger.Warn("bedrock provider unavailable", "error", err)
		} else {
			r.Register(p)
		}
	}
	if cfg.LLM.LocalRuntime.Enabled {
		p, err := llm.NewLocalProvider(llm.LocalConfig{BaseURL: cfg.LLM.LocalRuntime.BaseURL, DefaultModel: cfg.LLM.LocalRuntime.DefaultModel})
		if err != nil {
			logger.Warn("local runtime provider unavailable", "error", err)
		} else {
			r.Register(p)
		}
	}
}
