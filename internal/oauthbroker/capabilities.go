package oauthbroker

import "github.com/harborhq/harbor-helper/pkg/harbor"

// Source is which party performs the OAuth flow for a server.
type Source string

const (
	SourceHost         Source = "host"
	SourceUser         Source = "user"
	SourceServer       Source = "server"
	SourceUnhandleable Source = ""
)

// HostCapabilities describes what Harbor's own registered OAuth client can
// do for a given provider: the scopes and API surfaces it is configured
// with. These come from Harbor's own client registration, not the server
// manifest, and are populated at helper start from environment variables.
type HostCapabilities struct {
	Configured     bool
	AvailableScopes map[string]struct{}
	EnabledAPIs     map[string]struct{}
}

func (h HostCapabilities) coversScopes(scopes []string) bool {
	for _, s := range scopes {
		if _, ok := h.AvailableScopes[s]; !ok {
			return false
		}
	}
	return true
}

func (h HostCapabilities) coversAPIs(apis []string) bool {
	for _, a := range apis {
		if _, ok := h.EnabledAPIs[a]; !ok {
			return false
		}
	}
	return true
}

func supports(sources []string, want Source) bool {
	for _, s := range sources {
		if Source(s) == want {
			return true
		}
	}
	return false
}

// CheckOAuthCapabilities decides which token source an MCP server's OAuth
// requirement should use: host if Harbor's own client covers every declared
// scope and API (honoring preferredSource when it is itself satisfiable),
// else user if supported, else server if supported, else unhandleable
// (install must be blocked).
func CheckOAuthCapabilities(manifest harbor.OAuthManifest, host HostCapabilities) Source {
	hostSatisfiable := host.Configured && host.coversScopes(manifest.Scopes) && host.coversAPIs(manifest.APIs)

	if manifest.PreferredSource != "" {
		switch Source(manifest.PreferredSource) {
		case SourceHost:
			if hostSatisfiable {
				return SourceHost
			}
		case SourceUser:
			if supports(manifest.SupportedSources, SourceUser) {
				return SourceUser
			}
		case SourceServer:
			if supports(manifest.SupportedSources, SourceServer) {
				return SourceServer
			}
		}
	}

	if hostSatisfiable {
		return SourceHost
	}
	if supports(manifest.SupportedSources, SourceUser) {
		return SourceUser
	}
	if supports(manifest.SupportedSources, SourceServer) {
		return SourceServer
	}
	return SourceUnhandleable
}
