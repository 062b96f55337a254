package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

type fakeProvider struct {
	name    string
	entries []harbor.CatalogEntry
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context) ([]harbor.CatalogEntry, error) {
	return f.entries, f.err
}

func TestManager_FetchAllMergesAllProviders(t *testing.T) {
	db := openTestDB(t)
	registry := &fakeProvider{name: "registry", entries: []harbor.CatalogEntry{
		{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"},
	}}
	curated := &fakeProvider{name: "curated", entries: []harbor.CatalogEntry{
		{Name: "Filesystem MCP", RepositoryURL: "https://github.com/x/fs"},
	}}

	manager := NewManager(db, []Provider{registry, curated}, time.Hour)
	results := manager.FetchAll(context.Background(), time.Now())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("provider %s failed: %v", r.Provider, r.Err)
		}
	}

	found, err := manager.Search(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(found))
	}
}

func TestManager_FetchAllIsolatesProviderFailures(t *testing.T) {
	db := openTestDB(t)
	ok := &fakeProvider{name: "registry", entries: []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"}}}
	broken := &fakeProvider{name: "curated", err: errProviderUnreachable}

	manager := NewManager(db, []Provider{ok, broken}, time.Hour)
	results := manager.FetchAll(context.Background(), time.Now())

	var okSeen, failSeen bool
	for _, r := range results {
		if r.Provider == "registry" && r.Err == nil {
			okSeen = true
		}
		if r.Provider == "curated" && r.Err != nil {
			failSeen = true
		}
	}
	if !okSeen || !failSeen {
		t.Fatalf("expected one provider to succeed and one to fail, got %+v", results)
	}

	found, err := manager.Search(context.Background(), "gmail", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Fatal("expected the successful provider's entry to still be merged")
	}
}

func TestManager_IsStale(t *testing.T) {
	db := openTestDB(t)
	manager := NewManager(db, nil, time.Hour)

	stale, err := manager.IsStale(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if !stale {
		t.Fatal("expected fresh manager with no fetches to be stale")
	}
}

var errProviderUnreachable = &providerError{"provider unreachable"}

type providerError struct{ msg string }

func (e *providerError) Error() string { return e.msg }
