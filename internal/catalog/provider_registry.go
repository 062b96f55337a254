package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// RegistryProvider fetches the paginated official MCP server registry over
// HTTP: a plain GET against a known index endpoint, walking pages until one
// comes back short of a full page.
type RegistryProvider struct {
	baseURL  string
	pageSize int
	client   *http.Client
}

// NewRegistryProvider creates a registry provider against baseURL (the
// registry's API root, e.g. "https://registry.example.com"). pageSize <= 0
// defaults to 100.
func NewRegistryProvider(baseURL string, pageSize int, client *http.Client) *RegistryProvider {
	if pageSize <= 0 {
		pageSize = 100
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RegistryProvider{baseURL: baseURL, pageSize: pageSize, client: client}
}

func (p *RegistryProvider) Name() string { return "registry" }

type registryPage struct {
	Servers []registryServer `json:"servers"`
	HasMore bool             `json:"hasMore"`
}

type registryServer struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	EndpointURL   string   `json:"endpointUrl"`
	Packages      []string `json:"packages"`
	RepositoryURL string   `json:"repositoryUrl"`
	Tags          []string `json:"tags"`
	Official      bool     `json:"official"`
	RemoteCapable bool     `json:"remoteCapable"`
	Downloads     int      `json:"downloads"`
}

// Fetch walks the registry's pages until a short page signals the end.
func (p *RegistryProvider) Fetch(ctx context.Context) ([]harbor.CatalogEntry, error) {
	var entries []harbor.CatalogEntry

	for offset := 0; ; offset += p.pageSize {
		page, err := p.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, s := range page.Servers {
			entries = append(entries, harbor.CatalogEntry{
				Name:           s.Name,
				EndpointURL:    s.EndpointURL,
				Packages:       s.Packages,
				Description:    s.Description,
				RepositoryURL:  s.RepositoryURL,
				Tags:           s.Tags,
				OfficialSource: true,
				OfficialTag:    s.Official,
				RemoteCapable:  s.RemoteCapable,
				PopularityScore: s.Downloads,
			})
		}
		if !page.HasMore || len(page.Servers) < p.pageSize {
			break
		}
	}
	return entries, nil
}

func (p *RegistryProvider) fetchPage(ctx context.Context, offset int) (*registryPage, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse registry base url: %w", err)
	}
	u.Path = u.Path + "/servers"
	q := u.Query()
	q.Set("limit", strconv.Itoa(p.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch registry page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch registry page: unexpected status %d", resp.StatusCode)
	}

	var page registryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode registry page: %w", err)
	}
	return &page, nil
}
