// Package broker enforces the permission and session model: which origin
// may call which scope, and the active/suspended/terminated lifecycle of
// agent.sessions.* contexts. It owns no transport and no MCP knowledge; the
// router consults it before dispatching any scoped operation.
package broker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

const grantStoreVersion = 1

// grantEnvelope is the on-disk shape of permissions.json.
type grantEnvelope struct {
	Version   int                     `json:"version"`
	Grants    []harbor.PermissionGrant `json:"grants"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// grantKey identifies one (origin, scope) decision.
type grantKey struct {
	Origin harbor.Origin
	Scope  harbor.Scope
}

// GrantStore persists "granted-always"/"denied" decisions across restarts.
// "granted-once" decisions never reach this store — they live only in the
// in-memory Broker for the life of the tab.
type GrantStore struct {
	path string

	mu     sync.Mutex
	grants map[grantKey]harbor.PermissionGrant
	logger *slog.Logger
}

// NewGrantStore opens (or creates) the grant store at path.
func NewGrantStore(path string, logger *slog.Logger) (*GrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GrantStore{
		path:   path,
		grants: make(map[grantKey]harbor.PermissionGrant),
		logger: logger.With("component", "broker.store"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create grant store directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GrantStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read grant store: %w", err)
	}

	var env grantEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("corrupted grant store, starting fresh", "error", err)
		return nil
	}
	if env.Version != grantStoreVersion {
		s.logger.Warn("grant store schema version mismatch, starting fresh",
			"found", env.Version, "want", grantStoreVersion)
		return nil
	}
	for _, g := range env.Grants {
		s.grants[grantKey{g.Origin, g.Scope}] = g
	}
	return nil
}

// Get returns the persisted decision for (origin, scope), if any.
func (s *GrantStore) Get(origin harbor.Origin, scope harbor.Scope) (harbor.PermissionGrant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantKey{origin, scope}]
	return g, ok
}

// ForOrigin returns every persisted decision for one origin.
func (s *GrantStore) ForOrigin(origin harbor.Origin) []harbor.PermissionGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []harbor.PermissionGrant
	for k, g := range s.grants {
		if k.Origin == origin {
			out = append(out, g)
		}
	}
	return out
}

// Put persists a granted-always or denied decision. granted-once and
// not-granted states are never written here; callers should not ask.
func (s *GrantStore) Put(g harbor.PermissionGrant) error {
	if g.State != harbor.GrantGrantedAlways && g.State != harbor.GrantDenied {
		return fmt.Errorf("grant store only persists granted-always or denied, got %s", g.State)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now()
	}
	s.grants[grantKey{g.Origin, g.Scope}] = g
	return s.persist()
}

// Revoke removes a persisted decision for (origin, scope), reverting it to
// not-granted.
func (s *GrantStore) Revoke(origin harbor.Origin, scope harbor.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{origin, scope})
	return s.persist()
}

func (s *GrantStore) persist() error {
	env := grantEnvelope{Version: grantStoreVersion, UpdatedAt: time.Now()}
	for _, g := range s.grants {
		env.Grants = append(env.Grants, g)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal grant store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write grant store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename grant store: %w", err)
	}
	return nil
}
