// Package config loads and defaults harbor-helper's root configuration
// file: one nested struct per subsystem, unmarshaled from YAML, with
// defaults applied after unmarshal so a zero-value field always means
// "use the default" rather than "use the zero value".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for harbor-helper.
type Config struct {
	Version int `yaml:"version"`

	Server        ServerConfig        `yaml:"server"`
	MCP           MCPConfig           `yaml:"mcp"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	OAuth         OAuthConfig         `yaml:"oauth"`
	LLM           LLMConfig           `yaml:"llm"`
	Broker        BrokerConfig        `yaml:"broker"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the native helper process itself.
type ServerConfig struct {
	// HomeDir is the root of persisted state (~/.harbor by default):
	// catalog.db, auth/oauth-tokens.json, secrets/credentials.json,
	// installed_servers.json.
	HomeDir string `yaml:"home_dir"`

	// RequestTimeout bounds non-streaming requests (default 30s).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxMessageBytes bounds a single framed native-messaging payload
	// (~1 MiB).
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// CatalogWorker, when true, forks the catalog refresh into the
	// `catalog-worker` subcommand instead of running it inline.
	CatalogWorker bool `yaml:"catalog_worker"`
}

// MCPConfig configures the MCP connection manager.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`

	// CallTimeout bounds a single call_tool round trip to a child server.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MaxMessageBytes bounds one JSON-RPC frame read from a child's stdout.
	MaxMessageBytes int `yaml:"max_message_bytes"`
}

// CatalogConfig configures catalog providers, the SQLite store, and the
// enrichment pipeline.
type CatalogConfig struct {
	// DBPath defaults to <home_dir>/catalog.db.
	DBPath string `yaml:"db_path"`

	// FetchTTL is how long a provider's last-success result is considered
	// fresh before a refresh is attempted again (default 1h).
	FetchTTL time.Duration `yaml:"fetch_ttl"`

	Registry RegistryProviderConfig `yaml:"registry"`
	Curated  CuratedProviderConfig  `yaml:"curated"`
	Readme   ReadmeProviderConfig   `yaml:"readme"`

	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

type RegistryProviderConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
}

type CuratedProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ReadmeProviderConfig struct {
	Enabled bool     `yaml:"enabled"`
	Repos   []string `yaml:"repos"`
}

// EnrichmentConfig bounds the pluggable-enricher pipeline's concurrency and
// cache lifetime.
type EnrichmentConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BatchSize      int           `yaml:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	RequestsPerSec float64       `yaml:"requests_per_second"`
}

// OAuthConfig configures the OAuth broker: Harbor's own host-mode client
// credentials per provider (read from env at start, not stored here), the
// loopback callback port, and the token store path.
type OAuthConfig struct {
	CallbackAddr string                        `yaml:"callback_addr"`
	TokensPath   string                        `yaml:"tokens_path"`
	Providers    map[string]OAuthProviderConfig `yaml:"providers"`
}

// OAuthProviderConfig names the env vars holding Harbor's host-mode client
// credentials and capability set for one provider.
type OAuthProviderConfig struct {
	ClientIDEnv     string   `yaml:"client_id_env"`
	ClientSecretEnv string   `yaml:"client_secret_env"`
	AvailableScopes []string `yaml:"available_scopes"`
	EnabledAPIs     []string `yaml:"enabled_apis"`
}

// LLMConfig configures the provider router and each hosted/local adapter.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Anthropic       AnthropicConfig      `yaml:"anthropic"`
	OpenAI          OpenAIConfig         `yaml:"openai"`
	Bedrock         BedrockConfig        `yaml:"bedrock"`
	LocalRuntime    LocalRuntimeConfig   `yaml:"local_runtime"`
}

type AnthropicConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

type OpenAIConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

type BedrockConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Region       string `yaml:"region"`
	ProfileEnv   string `yaml:"profile_env"`
	DefaultModel string `yaml:"default_model"`
}

// LocalRuntimeConfig configures the OpenAI-compatible chat-completions
// adapter for a locally hosted runtime (Ollama-style).
type LocalRuntimeConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// BrokerConfig configures the permission/session broker.
type BrokerConfig struct {
	GrantsPath          string        `yaml:"grants_path"`
	DefaultTTL          time.Duration `yaml:"default_ttl"`
	DefaultMaxToolCalls int           `yaml:"default_max_tool_calls"`
}

// LoggingConfig configures the slog-based structured logger.
type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"` // "json" | "text"
	Output         string   `yaml:"output"` // path, or "stderr"/"stdout"
	AddSource      bool     `yaml:"add_source"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// ObservabilityConfig toggles the Prometheus metrics endpoint.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// Default returns a Config with every field populated with its default
// value, the way a fresh install with no config file on disk would run.
func Default() *Config {
	home, _ := os.UserHomeDir()
	homeDir := filepath.Join(home, ".harbor")

	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			HomeDir:         homeDir,
			RequestTimeout:  30 * time.Second,
			MaxMessageBytes: 1 << 20,
			CatalogWorker:   true,
		},
		MCP: MCPConfig{
			Enabled:         true,
			CallTimeout:     30 * time.Second,
			MaxMessageBytes: 1 << 20,
		},
		Catalog: CatalogConfig{
			DBPath:   filepath.Join(homeDir, "catalog.db"),
			FetchTTL: time.Hour,
			Registry: RegistryProviderConfig{Enabled: true, PageSize: 100},
			Curated:  CuratedProviderConfig{Enabled: true},
			Readme:   ReadmeProviderConfig{Enabled: false},
			Enrichment: EnrichmentConfig{
				Enabled:        true,
				BatchSize:      8,
				BatchDelay:     2 * time.Second,
				CacheTTL:       time.Hour,
				RequestsPerSec: 5,
			},
		},
		OAuth: OAuthConfig{
			CallbackAddr: "127.0.0.1:43117",
			TokensPath:   filepath.Join(homeDir, "auth", "oauth-tokens.json"),
			Providers:    map[string]OAuthProviderConfig{},
		},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			// Anthropic and OpenAI default to enabled: registerLLMProviders still
			// gates on the API key env var actually being set, so this only takes
			// effect once a key is exported. Bedrock and the local runtime stay
			// opt-in since they imply AWS credentials or a locally running server
			// most installs won't have.
			Anthropic:    AnthropicConfig{Enabled: true, APIKeyEnv: "ANTHROPIC_API_KEY", DefaultModel: "claude-sonnet-4-5"},
			OpenAI:       OpenAIConfig{Enabled: true, APIKeyEnv: "OPENAI_API_KEY", DefaultModel: "gpt-4o"},
			Bedrock:      BedrockConfig{Region: "us-east-1"},
			LocalRuntime: LocalRuntimeConfig{BaseURL: "http://localhost:11434/v1", DefaultModel: "llama3.1"},
		},
		Broker: BrokerConfig{
			GrantsPath:          filepath.Join(homeDir, "secrets", "grants.json"),
			DefaultTTL:          0,
			DefaultMaxToolCalls: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
			RedactPatterns: []string{
				`(?i)(access|refresh)[-_]?token["':= ]+\S+`,
				`(?i)client[-_]?secret["':= ]+\S+`,
				`(?i)authorization:\s*bearer\s+\S+`,
			},
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: false,
			MetricsAddr:    "127.0.0.1:9090",
		},
	}
}

// applyDefaults fills zero-valued fields of cfg from Default(), so a config
// file only needs to mention what it overrides.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Version == 0 {
		cfg.Version = def.Version
	}
	if cfg.Server.HomeDir == "" {
		cfg.Server.HomeDir = def.Server.HomeDir
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = def.Server.RequestTimeout
	}
	if cfg.Server.MaxMessageBytes == 0 {
		cfg.Server.MaxMessageBytes = def.Server.MaxMessageBytes
	}
	if cfg.MCP.CallTimeout == 0 {
		cfg.MCP.CallTimeout = def.MCP.CallTimeout
	}
	if cfg.MCP.MaxMessageBytes == 0 {
		cfg.MCP.MaxMessageBytes = def.MCP.MaxMessageBytes
	}
	if cfg.Catalog.DBPath == "" {
		cfg.Catalog.DBPath = filepath.Join(cfg.Server.HomeDir, "catalog.db")
	}
	if cfg.Catalog.FetchTTL == 0 {
		cfg.Catalog.FetchTTL = def.Catalog.FetchTTL
	}
	if cfg.Catalog.Enrichment.BatchSize == 0 {
		cfg.Catalog.Enrichment.BatchSize = def.Catalog.Enrichment.BatchSize
	}
	if cfg.Catalog.Enrichment.BatchDelay == 0 {
		cfg.Catalog.Enrichment.BatchDelay = def.Catalog.Enrichment.BatchDelay
	}
	if cfg.Catalog.Enrichment.CacheTTL == 0 {
		cfg.Catalog.Enrichment.CacheTTL = def.Catalog.Enrichment.CacheTTL
	}
	if cfg.Catalog.Enrichment.RequestsPerSec == 0 {
		cfg.Catalog.Enrichment.RequestsPerSec = def.Catalog.Enrichment.RequestsPerSec
	}
	if cfg.OAuth.CallbackAddr == "" {
		cfg.OAuth.CallbackAddr = def.OAuth.CallbackAddr
	}
	if cfg.OAuth.TokensPath == "" {
		cfg.OAuth.TokensPath = filepath.Join(cfg.Server.HomeDir, "auth", "oauth-tokens.json")
	}
	if cfg.OAuth.Providers == nil {
		cfg.OAuth.Providers = map[string]OAuthProviderConfig{}
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = def.LLM.DefaultProvider
	}
	if cfg.LLM.Anthropic.APIKeyEnv == "" {
		cfg.LLM.Anthropic.APIKeyEnv = def.LLM.Anthropic.APIKeyEnv
	}
	if cfg.LLM.Anthropic.DefaultModel == "" {
		cfg.LLM.Anthropic.DefaultModel = def.LLM.Anthropic.DefaultModel
	}
	if cfg.LLM.OpenAI.APIKeyEnv == "" {
		cfg.LLM.OpenAI.APIKeyEnv = def.LLM.OpenAI.APIKeyEnv
	}
	if cfg.LLM.OpenAI.DefaultModel == "" {
		cfg.LLM.OpenAI.DefaultModel = def.LLM.OpenAI.DefaultModel
	}
	if cfg.LLM.Bedrock.Region == "" {
		cfg.LLM.Bedrock.Region = def.LLM.Bedrock.Region
	}
	if cfg.LLM.LocalRuntime.BaseURL == "" {
		cfg.LLM.LocalRuntime.BaseURL = def.LLM.LocalRuntime.BaseURL
	}
	if cfg.LLM.LocalRuntime.DefaultModel == "" {
		cfg.LLM.LocalRuntime.DefaultModel = def.LLM.LocalRuntime.DefaultModel
	}
	if cfg.Broker.GrantsPath == "" {
		cfg.Broker.GrantsPath = filepath.Join(cfg.Server.HomeDir, "secrets", "grants.json")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}
	if len(cfg.Logging.RedactPatterns) == 0 {
		cfg.Logging.RedactPatterns = def.Logging.RedactPatterns
	}
	if cfg.Observability.MetricsAddr == "" {
		cfg.Observability.MetricsAddr = def.Observability.MetricsAddr
	}
}

// Validate checks the config for values that would make the helper unable
// to start, beyond what applyDefaults can paper over.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return err
	}
	if cfg.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.max_message_bytes must be positive")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", cfg.Logging.Format)
	}
	return nil
}
