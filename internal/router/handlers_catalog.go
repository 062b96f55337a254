package router

import (
	"context"
	"time"

	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

type catalogGetPayload struct {
	ID string `json:"id"`
}

func handleCatalogGet(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload catalogGetPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	entry, ok, err := deps.Catalog.Get(ctx, payload.ID)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "catalog get", err)
	}
	if !ok {
		return nil, harbor.NewError(harbor.ErrHarborNotFound, "no catalog entry "+payload.ID)
	}
	return entry, nil
}

type catalogRefreshResult struct {
	Provider string            `json:"provider"`
	Added    int               `json:"added,omitempty"`
	Updated  int               `json:"updated,omitempty"`
	Removed  int               `json:"removed,omitempty"`
	Restored int               `json:"restored,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func handleCatalogRefresh(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	raw := deps.Catalog.FetchAll(ctx, time.Now())
	results := make([]catalogRefreshResult, 0, len(raw))
	for _, r := range raw {
		out := catalogRefreshResult{Provider: r.Provider}
		if r.Err != nil {
			out.Error = r.Err.Error()
		} else if r.Upsert != nil {
			out.Added, out.Updated, out.Removed, out.Restored = r.Upsert.Added, r.Upsert.Updated, r.Upsert.Removed, r.Upsert.Restored
		}
		results = append(results, out)
	}
	return map[string][]catalogRefreshResult{"results": results}, nil
}

type catalogSearchPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func handleCatalogSearch(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload catalogSearchPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	entries, err := deps.Catalog.Search(ctx, payload.Query, payload.Limit)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "catalog search", err)
	}
	return map[string][]harbor.CatalogEntry{"entries": entries}, nil
}

func handleCheckRuntimes(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	return deps.Installer.CheckRuntimes(), nil
}
