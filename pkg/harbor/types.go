// Package harbor holds the data-model types shared across the native helper:
// origins, permission grants, sessions, MCP server records, stored OAuth
// tokens, and catalog entries. Everything here is plain data — no behavior —
// so it can be imported by transport, broker, mcpmgr, oauthbroker, catalog
// and agentloop without creating import cycles.
package harbor

import "time"

// Origin is the web-principal identifier (scheme+host+port) that all policy
// decisions key on.
type Origin string

// Scope is a permission token from the closed enum. Adding a scope is a
// protocol change: it must update both the prompt UI contract and every
// broker enforcement point.
type Scope string

const (
	ScopeModelPrompt          Scope = "model:prompt"
	ScopeModelList            Scope = "model:list"
	ScopeModelTools           Scope = "model:tools"
	ScopeMCPToolsList         Scope = "mcp:tools.list"
	ScopeMCPToolsCall         Scope = "mcp:tools.call"
	ScopeBrowserActiveTabRead Scope = "browser:activeTab.read"
	ScopeBrowserActiveTabUse  Scope = "browser:activeTab.interact"
	ScopeWebFetch             Scope = "web:fetch"
)

// ValidScopes enumerates the closed scope set in the order they are
// presented to a prompt UI.
var ValidScopes = []Scope{
	ScopeModelPrompt,
	ScopeModelList,
	ScopeModelTools,
	ScopeMCPToolsList,
	ScopeMCPToolsCall,
	ScopeBrowserActiveTabRead,
	ScopeBrowserActiveTabUse,
	ScopeWebFetch,
}

// IsValidScope reports whether s belongs to the closed enum.
func IsValidScope(s Scope) bool {
	for _, v := range ValidScopes {
		if v == s {
			return true
		}
	}
	return false
}

// GrantState is the resolved decision for one (origin, scope) pair.
type GrantState string

const (
	GrantGrantedOnce   GrantState = "granted-once"
	GrantGrantedAlways GrantState = "granted-always"
	GrantDenied        GrantState = "denied"
	GrantNotGranted    GrantState = "not-granted"
)

// PermissionGrant binds an origin+scope pair to a resolved state, optionally
// narrowed to a specific tool allow-list for mcp:tools.call.
type PermissionGrant struct {
	Origin       Origin     `json:"origin"`
	Scope        Scope      `json:"scope"`
	State        GrantState `json:"state"`
	AllowedTools []string   `json:"allowedTools,omitempty"`
	GrantedAt    time.Time  `json:"grantedAt"`
}

// SessionKind distinguishes implicit tab-lifetime sessions from explicit
// page-declared sessions.
type SessionKind string

const (
	SessionImplicit SessionKind = "implicit"
	SessionExplicit SessionKind = "explicit"
)

// SessionState is the session lifecycle. Terminated is absorbing.
type SessionState string

const (
	SessionActive     SessionState = "active"
	SessionSuspended  SessionState = "suspended"
	SessionTerminated SessionState = "terminated"
)

// SessionCapabilities is the capability declaration an explicit session is
// created with; an implicit session's capabilities are synthesized from
// whatever scopes the origin already holds at creation time.
type SessionCapabilities struct {
	LLM     bool     `json:"llm,omitempty"`
	Tools   []string `json:"tools,omitempty"`
	Browser []string `json:"browser,omitempty"`

	MaxToolCalls int     `json:"maxToolCalls,omitempty"`
	TTLMinutes   int     `json:"ttlMinutes,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// Session is a capability-bearing context for one origin's API calls.
type Session struct {
	ID           string               `json:"id"`
	Origin       Origin               `json:"origin"`
	Kind         SessionKind          `json:"kind"`
	State        SessionState         `json:"state"`
	Capabilities SessionCapabilities  `json:"capabilities"`
	CreatedAt    time.Time            `json:"createdAt"`
	ExpiresAt    *time.Time           `json:"expiresAt,omitempty"`
	PromptCount  int                  `json:"promptCount"`
	ToolCallCount int                 `json:"toolCallCount"`
}

// InstallState is an MCP server's lifecycle relative to the installer, not
// to be confused with the connection manager's runtime state machine.
type InstallState string

const (
	InstallAbsent    InstallState = "absent"
	InstallInstalled InstallState = "installed"
	InstallRunning   InstallState = "running"
	InstallFailed    InstallState = "failed"
)

// ToolSummary describes a callable tool regardless of whether it proxies an
// MCP tool, a resource bridge, or a prompt bridge.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      any             `json:"schema,omitempty"`
	Source      string          `json:"source"`
	Namespace   string          `json:"namespace"`
	Canonical   string          `json:"canonical"`
}

// MCPServerRecord is the MCP manager's view of one configured server. The
// user-surface ID is stable across restarts; ToolsCache is invalidated on
// every restart and repopulated from tools/list once the server is ready.
type MCPServerRecord struct {
	ID            string            `json:"id"`
	Manifest      ServerManifest    `json:"manifest"`
	InstallState  InstallState      `json:"installState"`
	PID           int               `json:"pid,omitempty"`
	ToolsCache    []ToolSummary     `json:"toolsCache,omitempty"`
	LastStartedAt *time.Time        `json:"lastStartedAt,omitempty"`
	EnvOverrides  map[string]string `json:"envOverrides,omitempty"`
}

// OAuthHostModeEnv declares the env var names a manifest wants populated
// when the OAuth broker resolves the server's source to "host".
type OAuthHostModeEnv struct {
	TokenEnvVar        string `json:"tokenEnvVar"`
	RefreshTokenEnvVar string `json:"refreshTokenEnvVar,omitempty"`
	ClientIDEnvVar     string `json:"clientIdEnvVar,omitempty"`
	ClientSecretEnvVar string `json:"clientSecretEnvVar,omitempty"`
}

// OAuthUserModeEnv declares the env var names populated when the resolved
// source is "user" (user-supplied credentials, no broker-owned client).
type OAuthUserModeEnv struct {
	CredentialPathEnvVar string `json:"credentialPathEnvVar,omitempty"`
}

// OAuthManifest is the subset of a server manifest the OAuth broker acts on.
type OAuthManifest struct {
	Provider         string            `json:"provider,omitempty"`
	SupportedSources []string          `json:"supportedSources,omitempty"`
	Scopes           []string          `json:"scopes,omitempty"`
	APIs             []string          `json:"apis,omitempty"`
	HostMode         *OAuthHostModeEnv `json:"hostMode,omitempty"`
	UserMode         *OAuthUserModeEnv `json:"userMode,omitempty"`
	PreferredSource  string            `json:"preferredSource,omitempty"`
}

// RuntimeKind is the resolved execution vehicle for an MCP server package.
type RuntimeKind string

const (
	RuntimeNodePackageRunner   RuntimeKind = "node-package-runner"
	RuntimePythonPackageRunner RuntimeKind = "python-package-runner"
	RuntimeContainer           RuntimeKind = "container"
	RuntimeLocalBinary         RuntimeKind = "local-binary"
)

// ServerManifest is the installer/catalog-sourced description of how to run
// one MCP server: its launch command, declared environment, and OAuth needs.
type ServerManifest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Runtime     RuntimeSpec       `json:"runtime"`
	OAuth       *OAuthManifest    `json:"oauth,omitempty"`
}

// RuntimeSpec is the manifest's declared runtime preferences. ArtifactURL and
// Checksum only apply to RuntimeLocalBinary and RuntimeContainer: package-runner
// kinds resolve and fetch their own packages and never populate these.
type RuntimeSpec struct {
	Kind          RuntimeKind `json:"kind,omitempty"`
	HasNativeCode bool        `json:"hasNativeCode,omitempty"`
	ArtifactURL   string      `json:"artifactUrl,omitempty"`
	Checksum      string      `json:"checksum,omitempty"`
}

// StoredTokens is one MCP server's OAuth credential record.
type StoredTokens struct {
	ServerID     string     `json:"serverId"`
	Provider     string     `json:"provider"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NearExpiry reports whether the token should be refreshed proactively,
// i.e. it expires within slack of now.
func (t StoredTokens) NearExpiry(now time.Time, slack time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return t.ExpiresAt.Before(now.Add(slack))
}

// CatalogEntry is a deduplicated record of one known MCP server from one
// provider source. ID is deterministic from (Source, EndpointURL|Repo, Name).
type CatalogEntry struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	EndpointURL     string    `json:"endpointUrl,omitempty"`
	Packages        []string  `json:"packages,omitempty"`
	Description     string    `json:"description,omitempty"`
	RepositoryURL   string    `json:"repositoryUrl,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	FirstSeenAt     time.Time `json:"firstSeenAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
	IsRemoved       bool      `json:"isRemoved"`
	RemovedAt       *time.Time `json:"removedAt,omitempty"`
	PriorityScore   int       `json:"priorityScore"`
	PopularityScore int       `json:"popularityScore"`
	Featured        bool      `json:"featured,omitempty"`
	OfficialTag     bool      `json:"officialTag,omitempty"`
	OfficialSource  bool      `json:"officialSource,omitempty"`
	RemoteCapable   bool      `json:"remoteCapable,omitempty"`
}

// ChangeKind records what happened to a catalog entry on a given upsert.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
	ChangeRestored ChangeKind = "restored"
)

// ErrorCode is one of the closed set of wire error codes returned to the
// browser extension.
type ErrorCode string

const (
	ErrTimeout           ErrorCode = "ERR_TIMEOUT"
	ErrPermissionDenied  ErrorCode = "ERR_PERMISSION_DENIED"
	ErrInsufficientScope ErrorCode = "ERR_INSUFFICIENT_SCOPE"
	ErrHarborNotFound    ErrorCode = "ERR_HARBOR_NOT_FOUND"
	ErrInvalidMessage    ErrorCode = "invalid_message"
	ErrMessageTooLarge   ErrorCode = "message_too_large"
	ErrInvalidParams     ErrorCode = "invalid_params"
	ErrNotFound          ErrorCode = "not_found"
	ErrNotConnected      ErrorCode = "not_connected"
	ErrConnectionFailed  ErrorCode = "connection_failed"
	ErrToolNotFound      ErrorCode = "ERR_TOOL_NOT_FOUND"
	ErrToolFailed        ErrorCode = "ERR_TOOL_FAILED"
	ErrLLMFailed         ErrorCode = "ERR_LLM_FAILED"
	ErrEmptyResponse     ErrorCode = "ERR_EMPTY_RESPONSE"
	ErrInternal          ErrorCode = "internal_error"
)
