// Package oauthbroker owns multi-provider OAuth flows on behalf of
// installed MCP servers: source selection (host/user/server), the
// authorization-code-with-PKCE flow over a loopback callback, scheduled and
// lazy token refresh, and the env vars an MCP child needs injected at
// launch.
package oauthbroker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// refreshSlack is how far ahead of expiry a proactive refresh fires, and
// how close to expiry a lazy refresh on read is triggered.
const refreshSlack = 5 * time.Minute

// Broker coordinates providers, the callback listener, and the token store.
// It holds one failure counter per server so a refresh that fails twice in
// a row evicts the token instead of retrying forever.
type Broker struct {
	logger      *slog.Logger
	providers   map[string]Provider
	hostCaps    map[string]HostCapabilities
	hostClients map[string]ClientCredentials
	listener    *CallbackListener
	store       *TokenStore

	mu             sync.Mutex
	refreshFailures map[string]int
	timers         map[string]*time.Timer
}

// Option configures a Broker.
type Option func(*Broker)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// WithHostCapabilities registers what Harbor's own OAuth client can do for
// a given provider (scopes/APIs it has been granted), used by
// CheckOAuthCapabilities to decide host-mode eligibility.
func WithHostCapabilities(provider string, caps HostCapabilities) Option {
	return func(b *Broker) { b.hostCaps[provider] = caps }
}

// ClientCredentials is Harbor's own registered OAuth client id/secret for a
// provider, read from environment variables at helper start and used only
// in host mode.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// WithHostCredentials registers Harbor's own client credentials for a
// provider, injected into an MCP child's env when the manifest declares
// clientIdEnvVar/clientSecretEnvVar under hostMode.
func WithHostCredentials(provider string, creds ClientCredentials) Option {
	return func(b *Broker) { b.hostClients[provider] = creds }
}

// New builds a Broker. listener may be nil if host/user flows will never be
// initiated by this process (e.g. a catalog-worker child).
func New(store *TokenStore, providers map[string]Provider, listener *CallbackListener, opts ...Option) *Broker {
	b := &Broker{
		logger:          slog.Default().With("component", "oauthbroker"),
		providers:       providers,
		hostCaps:        make(map[string]HostCapabilities),
		hostClients:     make(map[string]ClientCredentials),
		listener:        listener,
		store:           store,
		refreshFailures: make(map[string]int),
		timers:          make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ResolveSource runs CheckOAuthCapabilities for a manifest against this
// broker's registered host capabilities.
func (b *Broker) ResolveSource(manifest harbor.OAuthManifest) Source {
	return CheckOAuthCapabilities(manifest, b.hostCaps[manifest.Provider])
}

// StartFlow runs the authorization-code flow for serverID against the
// manifest's provider, storing the resulting tokens and scheduling refresh.
// authURLReady is forwarded to the permission-prompt UI.
func (b *Broker) StartFlow(ctx context.Context, serverID string, manifest harbor.OAuthManifest, authURLReady func(url string)) error {
	if b.listener == nil {
		return fmt.Errorf("oauthbroker: no callback listener configured")
	}
	provider, ok := b.providers[manifest.Provider]
	if !ok {
		return fmt.Errorf("oauthbroker: %w: %s", ErrUnknownProvider, manifest.Provider)
	}

	result, pkce, _, err := b.listener.RunFlow(ctx, provider, authURLReady)
	if err != nil {
		return fmt.Errorf("oauth flow: %w", err)
	}
	if result.err != nil {
		return result.err
	}

	token, err := provider.Exchange(ctx, result.code, pkce.verifier)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	stored := harbor.StoredTokens{
		ServerID:     serverID,
		Provider:     manifest.Provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       manifest.Scopes,
		CreatedAt:    time.Now(),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.Add(-refreshSlack / 5) // small slack beyond provider's own expiry
		stored.ExpiresAt = &expiry
	}
	if err := b.store.Put(stored); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}

	b.scheduleRefresh(serverID, manifest, stored)
	return nil
}

// AccessToken returns a valid access token for serverID, refreshing lazily
// if the stored token is within refreshSlack of expiry.
func (b *Broker) AccessToken(ctx context.Context, serverID string, manifest harbor.OAuthManifest) (string, error) {
	stored, ok := b.store.Get(serverID)
	if !ok {
		return "", fmt.Errorf("oauthbroker: no stored tokens for %s", serverID)
	}
	if stored.NearExpiry(time.Now(), refreshSlack) && stored.RefreshToken != "" {
		refreshed, err := b.refresh(ctx, serverID, manifest, stored)
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	}
	return stored.AccessToken, nil
}

func (b *Broker) refresh(ctx context.Context, serverID string, manifest harbor.OAuthManifest, stored harbor.StoredTokens) (harbor.StoredTokens, error) {
	provider, ok := b.providers[manifest.Provider]
	if !ok {
		return harbor.StoredTokens{}, fmt.Errorf("oauthbroker: %w: %s", ErrUnknownProvider, manifest.Provider)
	}

	token, err := provider.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		b.mu.Lock()
		b.refreshFailures[serverID]++
		failures := b.refreshFailures[serverID]
		b.mu.Unlock()

		// Two consecutive failures after the stored expiry evicts the
		// token rather than retrying forever.
		if failures >= 2 && stored.ExpiresAt != nil && stored.ExpiresAt.Before(time.Now()) {
			b.logger.Warn("evicting tokens after repeated refresh failure", "server_id", serverID)
			_ = b.store.Delete(serverID)
		}
		return harbor.StoredTokens{}, fmt.Errorf("refresh token: %w", err)
	}

	b.mu.Lock()
	b.refreshFailures[serverID] = 0
	b.mu.Unlock()

	stored.AccessToken = token.AccessToken
	// Rotate refresh token only if the provider returned a new one.
	if token.RefreshToken != "" {
		stored.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		stored.ExpiresAt = &expiry
	}
	if err := b.store.Put(stored); err != nil {
		return harbor.StoredTokens{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	b.scheduleRefresh(serverID, manifest, stored)
	return stored, nil
}

// scheduleRefresh arms a timer firing at expiresAt-5min. Any prior timer
// for the same server is replaced.
func (b *Broker) scheduleRefresh(serverID string, manifest harbor.OAuthManifest, stored harbor.StoredTokens) {
	if stored.ExpiresAt == nil {
		return
	}
	delay := time.Until(stored.ExpiresAt.Add(-refreshSlack))
	if delay < 0 {
		delay = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.timers[serverID]; ok {
		t.Stop()
	}
	b.timers[serverID] = time.AfterFunc(delay, func() {
		current, ok := b.store.Get(serverID)
		if !ok {
			return
		}
		if _, err := b.refresh(context.Background(), serverID, manifest, current); err != nil {
			b.logger.Warn("scheduled refresh failed", "server_id", serverID, "error", err)
		}
	})
}

// EnvForServer returns the env vars an MCP child needs at launch, per the
// manifest's declared hostMode/userMode env var names.
func (b *Broker) EnvForServer(ctx context.Context, serverID string, manifest harbor.OAuthManifest, source Source) (map[string]string, error) {
	switch source {
	case SourceHost:
		if manifest.HostMode == nil {
			return nil, fmt.Errorf("oauthbroker: manifest has no hostMode env declaration")
		}
		token, err := b.AccessToken(ctx, serverID, manifest)
		if err != nil {
			return nil, err
		}
		stored, _ := b.store.Get(serverID)
		env := map[string]string{manifest.HostMode.TokenEnvVar: token}
		if manifest.HostMode.RefreshTokenEnvVar != "" && stored.RefreshToken != "" {
			env[manifest.HostMode.RefreshTokenEnvVar] = stored.RefreshToken
		}
		if creds, ok := b.hostClients[manifest.Provider]; ok {
			if manifest.HostMode.ClientIDEnvVar != "" {
				env[manifest.HostMode.ClientIDEnvVar] = creds.ClientID
			}
			if manifest.HostMode.ClientSecretEnvVar != "" {
				env[manifest.HostMode.ClientSecretEnvVar] = creds.ClientSecret
			}
		}
		return env, nil
	case SourceUser:
		if manifest.UserMode == nil || manifest.UserMode.CredentialPathEnvVar == "" {
			return nil, nil
		}
		// User mode only declares where to find user-provided
		// credentials; the broker does not own those values.
		return nil, nil
	default:
		return nil, nil
	}
}
