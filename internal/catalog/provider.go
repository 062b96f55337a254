package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Provider discovers catalog entries from one source: the official
// registry, a curated static list, or a community README scraper.
type Provider interface {
	// Name identifies the provider in provider_status and change_log rows.
	Name() string
	// Fetch returns the provider's current view of available MCP servers.
	// Entries need not have IDs set: DeriveID fills them in deterministically.
	Fetch(ctx context.Context) ([]harbor.CatalogEntry, error)
}

// catalogNamespace anchors the deterministic entry-id derivation so the
// same (source, endpoint-or-repo, name) tuple always yields the same id
// across process restarts and across machines.
var catalogNamespace = uuid.MustParse("d6e1b2c0-2e0e-4f7a-9d0f-6a6a9a6b9a00")

// DeriveID computes an entry's deterministic id from its source and
// whichever of EndpointURL or RepositoryURL it has, falling back to name
// alone for entries with neither (rare, but a curated entry might only
// declare a package name).
func DeriveID(source, endpointOrRepo, name string) string {
	key := source + "|" + endpointOrRepo + "|" + name
	return uuid.NewSHA1(catalogNamespace, []byte(key)).String()
}

func deriveEntryID(source string, entry harbor.CatalogEntry) string {
	identity := entry.EndpointURL
	if identity == "" {
		identity = entry.RepositoryURL
	}
	return DeriveID(source, identity, entry.Name)
}
