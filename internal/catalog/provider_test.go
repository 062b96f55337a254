package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDeriveID_Deterministic(t *testing.T) {
	a := DeriveID("registry", "https://example.com/mcp", "Gmail MCP")
	b := DeriveID("registry", "https://example.com/mcp", "Gmail MCP")
	if a != b {
		t.Fatalf("expected deterministic id, got %s and %s", a, b)
	}

	c := DeriveID("registry", "https://example.com/mcp", "Different Name")
	if a == c {
		t.Fatal("expected different names to derive different ids")
	}
}

func TestCuratedProvider_ParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curated.yaml")
	contents := `
servers:
  - name: Gmail MCP
    description: read and send email
    endpoint_url: https://gmail.example.com/mcp
    featured: true
  - name: Filesystem MCP
    repository_url: https://github.com/x/fs
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write curated file: %v", err)
	}

	provider := NewCuratedProvider(path)
	entries, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Featured {
		t.Fatal("expected first entry to be featured")
	}
	if !entries[0].OfficialSource {
		t.Fatal("expected curated entries to be marked as official source")
	}
}

func TestCuratedProvider_MissingFileReturnsEmpty(t *testing.T) {
	provider := NewCuratedProvider(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	entries, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing curated file, got %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries for missing file, got %v", entries)
	}
}

func TestParseReadme_ExtractsBulletLinks(t *testing.T) {
	readme := strings.NewReader(`# Awesome MCP Servers

- [Gmail MCP](https://github.com/x/gmail-mcp) - read and send email
- [Weather MCP](https://weather.example.com/mcp): live forecasts
Some unrelated paragraph text.
* [Slack MCP](https://github.com/x/slack-mcp) — team chat
`)

	entries, err := parseReadme(readme, "x/awesome-mcp")
	if err != nil {
		t.Fatalf("parseReadme: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "Gmail MCP" || entries[0].RepositoryURL == "" {
		t.Fatalf("expected github link to populate RepositoryURL, got %+v", entries[0])
	}
	if entries[1].EndpointURL == "" {
		t.Fatalf("expected non-github link to populate EndpointURL, got %+v", entries[1])
	}
}
