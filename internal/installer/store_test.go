package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func TestStore_PutGetList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rec := harbor.MCPServerRecord{
		ID:           "gmail",
		Manifest:     harbor.ServerManifest{ID: "gmail", Command: "gmail-mcp"},
		InstallState: harbor.InstallInstalled,
	}
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get("gmail")
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.InstallState != harbor.InstallInstalled {
		t.Fatalf("expected installed state, got %s", got.InstallState)
	}

	if len(store.List()) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.List()))
	}
}

func TestStore_Persists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Put(harbor.MCPServerRecord{ID: "fs", Manifest: harbor.ServerManifest{ID: "fs"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen NewStore: %v", err)
	}
	if _, ok := reopened.Get("fs"); !ok {
		t.Fatal("expected record to survive reopen")
	}
}

func TestStore_Remove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Put(harbor.MCPServerRecord{ID: "fs", Manifest: harbor.ServerManifest{ID: "fs"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Remove("fs"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := store.Get("fs"); ok {
		t.Fatal("expected record to be gone")
	}
	if err := store.Remove("fs"); err == nil {
		t.Fatal("expected error removing already-removed record")
	}
}

func TestStore_SetInstallState(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Put(harbor.MCPServerRecord{ID: "fs", Manifest: harbor.ServerManifest{ID: "fs"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.SetInstallState("fs", harbor.InstallRunning, 4242); err != nil {
		t.Fatalf("SetInstallState: %v", err)
	}

	rec, _ := store.Get("fs")
	if rec.InstallState != harbor.InstallRunning {
		t.Fatalf("expected running state, got %s", rec.InstallState)
	}
	if rec.PID != 4242 {
		t.Fatalf("expected pid 4242, got %d", rec.PID)
	}
	if rec.LastStartedAt == nil {
		t.Fatal("expected LastStartedAt to be set")
	}
}

func TestStore_CorruptedIndexRecovers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IndexFilename), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt index: %v", err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore should recover from corrupt index: %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatal("expected empty index after recovery")
	}

	matches, _ := filepath.Glob(filepath.Join(dir, IndexFilename+".corrupt-*"))
	if len(matches) != 1 {
		t.Fatalf("expected 1 backup file, got %d", len(matches))
	}
}
