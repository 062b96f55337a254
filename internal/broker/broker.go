package broker

import (
	"context"
	"sync"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// PromptDecision is what a prompt callback returns for one requested scope.
type PromptDecision struct {
	Scope        harbor.Scope
	State        harbor.GrantState
	AllowedTools []string
}

// PromptFunc surfaces a permission request to the user (typically a browser
// popup) and returns the user's decision for each requested scope. It
// blocks until the user responds or the context is cancelled.
type PromptFunc func(ctx context.Context, origin harbor.Origin, scopes []harbor.Scope) ([]PromptDecision, error)

// Broker is the single source of truth for what an origin is allowed to do.
// granted-once decisions live only here, scoped to the tab's lifetime;
// granted-always and denied decisions are mirrored into the GrantStore so
// they survive restarts.
type Broker struct {
	store  *GrantStore
	prompt PromptFunc

	mu   sync.Mutex
	once map[grantKey]harbor.PermissionGrant
}

// New creates a Broker backed by store, using prompt to resolve scopes that
// have no persisted decision yet.
func New(store *GrantStore, prompt PromptFunc) *Broker {
	return &Broker{
		store:  store,
		prompt: prompt,
		once:   make(map[grantKey]harbor.PermissionGrant),
	}
}

// Decision resolves the effective grant state for (origin, scope), checking
// the in-memory once-grants before the persisted store. Unknown scopes
// (outside harbor.ValidScopes) always resolve to GrantDenied.
func (b *Broker) Decision(origin harbor.Origin, scope harbor.Scope) harbor.PermissionGrant {
	if !harbor.IsValidScope(scope) {
		return harbor.PermissionGrant{Origin: origin, Scope: scope, State: harbor.GrantDenied}
	}

	b.mu.Lock()
	if g, ok := b.once[grantKey{origin, scope}]; ok {
		b.mu.Unlock()
		return g
	}
	b.mu.Unlock()

	if g, ok := b.store.Get(origin, scope); ok {
		return g
	}
	return harbor.PermissionGrant{Origin: origin, Scope: scope, State: harbor.GrantNotGranted}
}

// RequestPermissions resolves every requested scope, prompting the user for
// whichever ones have no persisted or once-granted decision yet. It returns
// the full set of resulting grants, in request order.
func (b *Broker) RequestPermissions(ctx context.Context, origin harbor.Origin, scopes []harbor.Scope) ([]harbor.PermissionGrant, error) {
	resolved := make([]harbor.PermissionGrant, len(scopes))
	var toPrompt []harbor.Scope
	promptIndex := make(map[harbor.Scope]int)

	for i, scope := range scopes {
		d := b.Decision(origin, scope)
		if d.State == harbor.GrantNotGranted {
			promptIndex[scope] = i
			toPrompt = append(toPrompt, scope)
			continue
		}
		resolved[i] = d
	}

	if len(toPrompt) == 0 {
		return resolved, nil
	}
	if b.prompt == nil {
		for _, scope := range toPrompt {
			i := promptIndex[scope]
			resolved[i] = harbor.PermissionGrant{Origin: origin, Scope: scope, State: harbor.GrantDenied}
		}
		return resolved, nil
	}

	decisions, err := b.prompt(ctx, origin, toPrompt)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrPermissionDenied, "permission prompt failed", err)
	}

	for _, d := range decisions {
		i, known := promptIndex[d.Scope]
		if !known {
			continue
		}
		grant := harbor.PermissionGrant{
			Origin:       origin,
			Scope:        d.Scope,
			State:        d.State,
			AllowedTools: d.AllowedTools,
		}
		if err := b.record(grant); err != nil {
			return nil, err
		}
		resolved[i] = grant
	}

	for scope, i := range promptIndex {
		if resolved[i].State == "" {
			resolved[i] = harbor.PermissionGrant{Origin: origin, Scope: scope, State: harbor.GrantDenied}
		}
	}
	return resolved, nil
}

func (b *Broker) record(g harbor.PermissionGrant) error {
	switch g.State {
	case harbor.GrantGrantedOnce, harbor.GrantDenied:
		if g.State == harbor.GrantDenied {
			return b.store.Put(g)
		}
		b.mu.Lock()
		b.once[grantKey{g.Origin, g.Scope}] = g
		b.mu.Unlock()
		return nil
	case harbor.GrantGrantedAlways:
		return b.store.Put(g)
	default:
		return nil
	}
}

// ListGrants returns every resolved grant for an origin: persisted
// decisions plus any in-memory once-grants.
func (b *Broker) ListGrants(origin harbor.Origin) []harbor.PermissionGrant {
	grants := b.store.ForOrigin(origin)

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, g := range b.once {
		if k.Origin == origin {
			grants = append(grants, g)
		}
	}
	return grants
}

// ReleaseTab drops every granted-once decision scoped to a tab when that
// tab closes, since their lifetime is the tab's, not the session's.
func (b *Broker) ReleaseTab(origin harbor.Origin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.once {
		if k.Origin == origin {
			delete(b.once, k)
		}
	}
}

// Check enforces that origin holds scope, returning an *harbor.Error with
// ERR_PERMISSION_DENIED (no grant) so the router can surface it verbatim.
// Use CheckTool for mcp:tools.call, which also enforces the allow-list.
func (b *Broker) Check(origin harbor.Origin, scope harbor.Scope) error {
	d := b.Decision(origin, scope)
	if d.State != harbor.GrantGrantedOnce && d.State != harbor.GrantGrantedAlways {
		return harbor.NewError(harbor.ErrPermissionDenied, "origin lacks scope "+string(scope))
	}
	return nil
}

// CheckTool enforces mcp:tools.call for a specific tool name, returning
// ERR_INSUFFICIENT_SCOPE when the grant exists but its allow-list excludes
// toolName.
func (b *Broker) CheckTool(origin harbor.Origin, toolName string) error {
	d := b.Decision(origin, harbor.ScopeMCPToolsCall)
	if d.State != harbor.GrantGrantedOnce && d.State != harbor.GrantGrantedAlways {
		return harbor.NewError(harbor.ErrPermissionDenied, "origin lacks scope "+string(harbor.ScopeMCPToolsCall))
	}
	if len(d.AllowedTools) == 0 {
		return nil
	}
	for _, allowed := range d.AllowedTools {
		if allowed == toolName {
			return nil
		}
	}
	return harbor.NewError(harbor.ErrInsufficientScope, "tool "+toolName+" not in allowed set")
}
