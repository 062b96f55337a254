package oauthbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Grant is what a completed OAuth flow produces: the raw token plus
// whatever identity fields the provider's userinfo endpoint returned. The
// broker only needs AccessToken/RefreshToken/Expiry; Identity is carried
// through for logging and is not persisted in StoredTokens.
type Grant struct {
	Token    *oauth2.Token
	Identity Identity
}

// Identity is the subset of provider userinfo worth logging when a flow
// completes; Harbor does not maintain user accounts, so nothing here is
// persisted beyond the lifetime of the flow.
type Identity struct {
	ID       string
	Provider string
	Email    string
}

// Provider implements one OAuth provider's flow: building the authorization
// URL, exchanging a code for tokens, and refreshing an expired token.
type Provider interface {
	Name() string
	AuthURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Identify(ctx context.Context, token *oauth2.Token) (Identity, error)
}

// ProviderConfig configures a generic OAuth2 provider against Harbor's own
// client credentials (host mode) or user-supplied ones (user mode).
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	// PublicClient indicates the provider has no confidential client
	// secret and must use PKCE instead of (or in addition to) a secret.
	PublicClient bool
}

// GenericProvider implements Provider against any standard OAuth2/OIDC
// endpoint pair, parameterized by a provider-specific userinfo parser.
type GenericProvider struct {
	name        string
	config      oauth2.Config
	userInfoURL string
	public      bool
	parser      func([]byte) (Identity, error)
}

func NewGenericProvider(name string, cfg ProviderConfig, parser func([]byte) (Identity, error)) *GenericProvider {
	return &GenericProvider{
		name: name,
		config: oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  strings.TrimSpace(cfg.AuthURL),
				TokenURL: strings.TrimSpace(cfg.TokenURL),
			},
		},
		userInfoURL: strings.TrimSpace(cfg.UserInfoURL),
		public:      cfg.PublicClient,
		parser:      parser,
	}
}

func (p *GenericProvider) Name() string { return p.name }

func (p *GenericProvider) AuthURL(state, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if p.public && codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.config.AuthCodeURL(state, opts...)
}

func (p *GenericProvider) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if p.public && codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}
	return p.config.Exchange(ctx, code, opts...)
}

func (p *GenericProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

func (p *GenericProvider) Identify(ctx context.Context, token *oauth2.Token) (Identity, error) {
	if p.userInfoURL == "" {
		return Identity{}, errors.New("userinfo url not configured")
	}
	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return Identity{}, fmt.Errorf("userinfo request failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, err
	}
	if p.parser == nil {
		return Identity{}, errors.New("userinfo parser not configured")
	}
	return p.parser(data)
}

// NewGoogleProvider builds a provider against Google's OIDC endpoints.
func NewGoogleProvider(cfg ProviderConfig) *GenericProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return NewGenericProvider("google", ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		Scopes:       cfg.Scopes,
		PublicClient: cfg.PublicClient,
	}, parseGoogleIdentity)
}

// NewGitHubProvider builds a provider against GitHub's OAuth endpoints.
func NewGitHubProvider(cfg ProviderConfig) *GenericProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"repo"}
	}
	return NewGenericProvider("github", ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		Scopes:       cfg.Scopes,
		PublicClient: cfg.PublicClient,
	}, parseGitHubIdentity)
}

// NewMicrosoftProvider builds a provider against Microsoft's common-tenant
// OAuth endpoints (Graph userinfo for Outlook/Teams-capable servers).
func NewMicrosoftProvider(cfg ProviderConfig) *GenericProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"offline_access", "User.Read"}
	}
	return NewGenericProvider("microsoft", ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
		Scopes:       cfg.Scopes,
		PublicClient: cfg.PublicClient,
	}, parseMicrosoftIdentity)
}

// NewSlackProvider builds a provider against Slack's OAuth v2 endpoints.
func NewSlackProvider(cfg ProviderConfig) *GenericProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"identity.basic"}
	}
	return NewGenericProvider("slack", ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      "https://slack.com/oauth/v2/authorize",
		TokenURL:     "https://slack.com/api/oauth.v2.access",
		UserInfoURL:  "https://slack.com/api/users.identity",
		Scopes:       cfg.Scopes,
		PublicClient: cfg.PublicClient,
	}, parseSlackIdentity)
}

func parseGoogleIdentity(data []byte) (Identity, error) {
	var payload struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, err
	}
	return Identity{ID: payload.Sub, Provider: "google", Email: payload.Email}, nil
}

func parseGitHubIdentity(data []byte) (Identity, error) {
	var payload struct {
		ID    any    `json:"id"`
		Email string `json:"email"`
		Login string `json:"login"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, err
	}
	id := fmt.Sprintf("%v", payload.ID)
	return Identity{ID: id, Provider: "github", Email: payload.Email}, nil
}

func parseMicrosoftIdentity(data []byte) (Identity, error) {
	var payload struct {
		ID   string `json:"id"`
		Mail string `json:"mail"`
		UPN  string `json:"userPrincipalName"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, err
	}
	email := payload.Mail
	if email == "" {
		email = payload.UPN
	}
	return Identity{ID: payload.ID, Provider: "microsoft", Email: email}, nil
}

func parseSlackIdentity(data []byte) (Identity, error) {
	var payload struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, err
	}
	return Identity{ID: payload.User.ID, Provider: "slack", Email: payload.User.Email}, nil
}
