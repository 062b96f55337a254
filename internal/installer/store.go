// Package installer resolves MCP server package manifests to runnable
// commands, downloads and verifies local-binary artifacts, and persists the
// set of servers a user has installed independent of the remote catalog.
package installer

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

// IndexFilename is the name of the installed-servers index file.
const IndexFilename = "installed_servers.json"

// index is the on-disk shape of installed_servers.json.
type index struct {
	Servers map[string]harbor.MCPServerRecord `json:"servers"`
}

// Store manages the local installed-server index at ~/.harbor/installed_servers.json.
// Unlike the catalog's SQLite store, entries here are locally authoritative:
// nothing tombstones them except an explicit uninstall.
type Store struct {
	path   string
	idx    index
	mu     sync.RWMutex
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used by the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates or opens the installed-server index at the given home
// directory (typically ~/.harbor). The parent directory is created with
// mode 0700 if missing.
func NewStore(homeDir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		return nil, fmt.Errorf("create harbor home directory: %w", err)
	}

	s := &Store{
		path:   filepath.Join(homeDir, IndexFilename),
		logger: slog.Default().With("component", "installer.store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.idx = index{Servers: make(map[string]harbor.MCPServerRecord)}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read installed server index: %w", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		corrupt := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102-150405"))
		if renameErr := os.Rename(s.path, corrupt); renameErr != nil {
			s.logger.Warn("failed to back up corrupted installed server index", "error", renameErr)
		} else {
			s.logger.Warn("backed up corrupted installed server index", "path", corrupt)
		}
		s.idx = index{Servers: make(map[string]harbor.MCPServerRecord)}
		return nil
	}
	if idx.Servers == nil {
		idx.Servers = make(map[string]harbor.MCPServerRecord)
	}
	s.idx = idx
	return nil
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal installed server index: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write installed server index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit installed server index: %w", err)
	}
	return nil
}

// List returns all installed server records.
func (s *Store) List() []harbor.MCPServerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]harbor.MCPServerRecord, 0, len(s.idx.Servers))
	for _, rec := range s.idx.Servers {
		out = append(out, rec)
	}
	return out
}

// Get returns an installed server record by id.
func (s *Store) Get(id string) (harbor.MCPServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idx.Servers[id]
	return rec, ok
}

// Put inserts or replaces a server record.
func (s *Store) Put(rec harbor.MCPServerRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("server id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx.Servers[rec.ID] = rec
	return s.persist()
}

// Remove deletes a server record from the index.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idx.Servers[id]; !ok {
		return fmt.Errorf("server not installed: %s", id)
	}
	delete(s.idx.Servers, id)
	return s.persist()
}

// SetInstallState updates just the install state and (for running/stopped
// transitions) the pid of a server record.
func (s *Store) SetInstallState(id string, state harbor.InstallState, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idx.Servers[id]
	if !ok {
		return fmt.Errorf("server not installed: %s", id)
	}
	rec.InstallState = state
	rec.PID = pid
	if state == harbor.InstallRunning {
		now := time.Now()
		rec.LastStartedAt = &now
	}
	s.idx.Servers[id] = rec
	return s.persist()
}

// SetToolsCache replaces the cached tool summaries for a server, populated
// after tools/list on a successful handshake.
func (s *Store) SetToolsCache(id string, tools []harbor.ToolSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idx.Servers[id]
	if !ok {
		return fmt.Errorf("server not installed: %s", id)
	}
	rec.ToolsCache = tools
	s.idx.Servers[id] = rec
	return s.persist()
}
