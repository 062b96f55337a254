package oauthbroker

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

const tokenStoreVersion = 1

// tokenEnvelope is the on-disk shape of auth/oauth-tokens.json.
type tokenEnvelope struct {
	Version   int                  `json:"version"`
	Tokens    []harbor.StoredTokens `json:"tokens"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// TokenStore persists StoredTokens to a single versioned JSON file, one
// writer at a time, serialized per serverId so concurrent refreshes never
// interleave writes. A schema version mismatch discards the file and starts
// fresh rather than attempting migration.
type TokenStore struct {
	path string

	mu     sync.Mutex
	tokens map[string]harbor.StoredTokens
	logger *slog.Logger
}

// NewTokenStore opens (or creates) the token store at path, creating parent
// directories with mode 0700. The file itself is always rewritten at 0600.
func NewTokenStore(path string, logger *slog.Logger) (*TokenStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TokenStore{
		path:   path,
		tokens: make(map[string]harbor.StoredTokens),
		logger: logger.With("component", "oauthbroker.store"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token store directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TokenStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}

	var env tokenEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("corrupted token store, starting fresh", "error", err)
		return nil
	}
	if env.Version != tokenStoreVersion {
		s.logger.Warn("token store schema version mismatch, starting fresh",
			"found", env.Version, "want", tokenStoreVersion)
		return nil
	}
	for _, t := range env.Tokens {
		s.tokens[t.ServerID] = t
	}
	return nil
}

// Get returns the stored tokens for a server id.
func (s *TokenStore) Get(serverID string) (harbor.StoredTokens, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[serverID]
	return t, ok
}

// Put upserts tokens for a server id and persists atomically.
func (s *TokenStore) Put(t harbor.StoredTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.UpdatedAt = time.Now()
	if t.CreatedAt.IsZero() {
		if existing, ok := s.tokens[t.ServerID]; ok {
			t.CreatedAt = existing.CreatedAt
		} else {
			t.CreatedAt = t.UpdatedAt
		}
	}
	s.tokens[t.ServerID] = t
	return s.persist()
}

// Delete removes a server's stored tokens (e.g. after two consecutive
// refresh failures).
func (s *TokenStore) Delete(serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, serverID)
	return s.persist()
}

// persist must be called with mu held. It writes to a temp file in the same
// directory and renames over the target, so a crash mid-write never leaves
// a truncated store behind.
func (s *TokenStore) persist() error {
	env := tokenEnvelope{Version: tokenStoreVersion, UpdatedAt: time.Now()}
	for _, t := range s.tokens {
		env.Tokens = append(env.Tokens, t)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename token store: %w", err)
	}
	return nil
}
