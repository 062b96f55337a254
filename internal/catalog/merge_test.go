package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsert_InsertsNewEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	entries := []harbor.CatalogEntry{
		{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp", Description: "email"},
	}
	result, err := db.Upsert(ctx, "registry", entries, now)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected 1 added, got %+v", result)
	}

	found, err := db.Search(ctx, "gmail", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 result, got %d", len(found))
	}
}

func TestUpsert_UpdateDetectsFieldChange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	base := []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"}}
	if _, err := db.Upsert(ctx, "registry", base, now); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	changed := []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp", Description: "now with a description"}}
	result, err := db.Upsert(ctx, "registry", changed, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected 1 updated, got %+v", result)
	}
}

func TestUpsert_NoOpWhenUnchanged(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	entries := []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"}}
	if _, err := db.Upsert(ctx, "registry", entries, now); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	result, err := db.Upsert(ctx, "registry", entries, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if result.Added != 0 || result.Updated != 0 || result.Restored != 0 {
		t.Fatalf("expected no-op result, got %+v", result)
	}
}

func TestUpsert_TombstonesMissingThenRestores(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	entries := []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"}}
	if _, err := db.Upsert(ctx, "registry", entries, now); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	result, err := db.Upsert(ctx, "registry", nil, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("tombstoning Upsert: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("expected 1 removed, got %+v", result)
	}

	found, err := db.Search(ctx, "gmail", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 0 {
		t.Fatal("expected tombstoned entry to be excluded from search")
	}

	result, err = db.Upsert(ctx, "registry", entries, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("restoring Upsert: %v", err)
	}
	if result.Restored != 1 {
		t.Fatalf("expected 1 restored, got %+v", result)
	}

	found, err = db.Search(ctx, "gmail", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Fatal("expected restored entry to reappear in search")
	}
}

func TestUpsert_OnlyTombstonesOwnProviderRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	registryEntry := []harbor.CatalogEntry{{Name: "Gmail MCP", EndpointURL: "https://gmail.example.com/mcp"}}
	curatedEntry := []harbor.CatalogEntry{{Name: "Filesystem MCP", RepositoryURL: "https://github.com/x/fs"}}

	if _, err := db.Upsert(ctx, "registry", registryEntry, now); err != nil {
		t.Fatalf("registry Upsert: %v", err)
	}
	if _, err := db.Upsert(ctx, "curated", curatedEntry, now); err != nil {
		t.Fatalf("curated Upsert: %v", err)
	}

	if _, err := db.Upsert(ctx, "registry", nil, now.Add(time.Minute)); err != nil {
		t.Fatalf("registry tombstoning Upsert: %v", err)
	}

	found, err := db.Search(ctx, "filesystem", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Fatal("expected curated entry to survive registry's tombstoning pass")
	}
}

func TestSearch_OrdersByPriorityThenName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	entries := []harbor.CatalogEntry{
		{Name: "Zebra MCP", EndpointURL: "https://z.example.com/mcp"},
		{Name: "Apple MCP", RepositoryURL: "https://github.com/x/apple"},
	}
	if _, err := db.Upsert(ctx, "registry", entries, now); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	found, err := db.Search(ctx, "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 results, got %d", len(found))
	}
	if found[0].Name != "Zebra MCP" {
		t.Fatalf("expected endpoint-having entry to rank first, got %s", found[0].Name)
	}
}

func TestIsStale_NoProvidersIsStale(t *testing.T) {
	db := openTestDB(t)
	stale, err := db.IsStale(context.Background(), time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if !stale {
		t.Fatal("expected catalog with no provider attempts to be stale")
	}
}

func TestIsStale_FreshAfterSuccess(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := db.Upsert(ctx, "registry", nil, now); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	stale, err := db.IsStale(ctx, now.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if stale {
		t.Fatal("expected catalog to be fresh right after a successful fetch")
	}
}
