package broker

import (
	"path/filepath"
	"testing"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func TestGrantStore_PutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	store, err := NewGrantStore(path, nil)
	if err != nil {
		t.Fatalf("NewGrantStore: %v", err)
	}

	grant := harbor.PermissionGrant{Origin: "https://example.com", Scope: harbor.ScopeModelPrompt, State: harbor.GrantGrantedAlways}
	if err := store.Put(grant); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get("https://example.com", harbor.ScopeModelPrompt)
	if !ok || got.State != harbor.GrantGrantedAlways {
		t.Fatalf("expected persisted grant, got %+v ok=%v", got, ok)
	}
}

func TestGrantStore_RejectsTransientStates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	store, err := NewGrantStore(path, nil)
	if err != nil {
		t.Fatalf("NewGrantStore: %v", err)
	}

	grant := harbor.PermissionGrant{Origin: "https://example.com", Scope: harbor.ScopeModelPrompt, State: harbor.GrantGrantedOnce}
	if err := store.Put(grant); err == nil {
		t.Fatal("expected an error persisting a granted-once grant")
	}
}

func TestGrantStore_SurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	store, err := NewGrantStore(path, nil)
	if err != nil {
		t.Fatalf("NewGrantStore: %v", err)
	}
	if err := store.Put(harbor.PermissionGrant{Origin: "https://example.com", Scope: harbor.ScopeWebFetch, State: harbor.GrantDenied}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reloaded, err := NewGrantStore(path, nil)
	if err != nil {
		t.Fatalf("reload NewGrantStore: %v", err)
	}
	got, ok := reloaded.Get("https://example.com", harbor.ScopeWebFetch)
	if !ok || got.State != harbor.GrantDenied {
		t.Fatalf("expected reloaded denied grant, got %+v ok=%v", got, ok)
	}
}

func TestGrantStore_Revoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	store, err := NewGrantStore(path, nil)
	if err != nil {
		t.Fatalf("NewGrantStore: %v", err)
	}
	if err := store.Put(harbor.PermissionGrant{Origin: "https://example.com", Scope: harbor.ScopeWebFetch, State: harbor.GrantDenied}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Revoke("https://example.com", harbor.ScopeWebFetch); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, ok := store.Get("https://example.com", harbor.ScopeWebFetch); ok {
		t.Fatal("expected revoked grant to be gone")
	}
}
