package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// ReadmeProvider scrapes community-maintained "awesome list" READMEs for
// MCP server links. These are the least structured of the three sources,
// so entries from it never carry officialSource or officialTag.
type ReadmeProvider struct {
	repos  []string // "owner/repo" slugs, README fetched from the default branch
	client *http.Client
}

// NewReadmeProvider creates a readme-scraping provider over the given
// "owner/repo" slugs.
func NewReadmeProvider(repos []string, client *http.Client) *ReadmeProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ReadmeProvider{repos: repos, client: client}
}

func (p *ReadmeProvider) Name() string { return "readme" }

// bulletLinkPattern matches "- [Name](https://...) - description" style
// awesome-list bullets, the dominant convention across community MCP lists.
var bulletLinkPattern = regexp.MustCompile(`^[-*]\s*\[([^\]]+)\]\(([^)]+)\)\s*[-—:]?\s*(.*)$`)

func (p *ReadmeProvider) Fetch(ctx context.Context) ([]harbor.CatalogEntry, error) {
	var entries []harbor.CatalogEntry
	for _, repo := range p.repos {
		repoEntries, err := p.fetchRepo(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", repo, err)
		}
		entries = append(entries, repoEntries...)
	}
	return entries, nil
}

func (p *ReadmeProvider) fetchRepo(ctx context.Context, repo string) ([]harbor.CatalogEntry, error) {
	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/HEAD/README.md", repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build readme request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch readme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch readme: unexpected status %d", resp.StatusCode)
	}

	return parseReadme(resp.Body, repo)
}

func parseReadme(r io.Reader, repo string) ([]harbor.CatalogEntry, error) {
	var entries []harbor.CatalogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		match := bulletLinkPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		name, link, description := strings.TrimSpace(match[1]), strings.TrimSpace(match[2]), strings.TrimSpace(match[3])
		if name == "" || link == "" {
			continue
		}

		entry := harbor.CatalogEntry{
			Name:        name,
			Description: description,
		}
		if strings.Contains(link, "github.com") {
			entry.RepositoryURL = link
		} else {
			entry.EndpointURL = link
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan readme from %s: %w", repo, err)
	}
	return entries, nil
}
