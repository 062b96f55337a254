package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/harborhq/harbor-helper/pkg/harbor"
	"gopkg.in/yaml.v3"
)

// CuratedProvider reads a fixed, operator-maintained list of known-good MCP
// servers from a YAML file. It never tombstones itself away unless an
// operator edits the file and removes an entry: the list only changes when
// someone deliberately changes it.
type CuratedProvider struct {
	path string
}

// NewCuratedProvider creates a curated-list provider reading from path.
func NewCuratedProvider(path string) *CuratedProvider {
	return &CuratedProvider{path: path}
}

func (p *CuratedProvider) Name() string { return "curated" }

type curatedFile struct {
	Servers []curatedServer `yaml:"servers"`
}

type curatedServer struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	EndpointURL   string   `yaml:"endpoint_url"`
	Packages      []string `yaml:"packages"`
	RepositoryURL string   `yaml:"repository_url"`
	Tags          []string `yaml:"tags"`
	Featured      bool     `yaml:"featured"`
	RemoteCapable bool     `yaml:"remote_capable"`
}

// Fetch reads and parses the curated file. A missing file is not an error:
// it returns an empty list, so an operator who hasn't set one up yet
// doesn't break startup.
func (p *CuratedProvider) Fetch(ctx context.Context) ([]harbor.CatalogEntry, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read curated catalog file: %w", err)
	}

	var file curatedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse curated catalog file: %w", err)
	}

	entries := make([]harbor.CatalogEntry, 0, len(file.Servers))
	for _, s := range file.Servers {
		entries = append(entries, harbor.CatalogEntry{
			Name:           s.Name,
			Description:    s.Description,
			EndpointURL:    s.EndpointURL,
			Packages:       s.Packages,
			RepositoryURL:  s.RepositoryURL,
			Tags:           s.Tags,
			Featured:       s.Featured,
			OfficialSource: true,
			RemoteCapable:  s.RemoteCapable,
		})
	}
	return entries, nil
}
