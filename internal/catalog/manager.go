package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Manager owns the catalog database and the set of discovery providers and
// enrichers feeding it. It is what both the main helper loop (read-only
// search/get) and the forked catalog-worker subcommand (periodic FetchAll)
// hold a reference to.
type Manager struct {
	db         *DB
	providers  []Provider
	enrichment *EnrichmentPipeline
	fetchTTL   time.Duration
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEnrichment attaches an enrichment pipeline run after every FetchAll.
func WithEnrichment(pipeline *EnrichmentPipeline) ManagerOption {
	return func(m *Manager) { m.enrichment = pipeline }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a catalog manager over db with fetchTTL governing
// staleness (1h default).
func NewManager(db *DB, providers []Provider, fetchTTL time.Duration, opts ...ManagerOption) *Manager {
	if fetchTTL <= 0 {
		fetchTTL = time.Hour
	}
	m := &Manager{
		db:        db,
		providers: providers,
		fetchTTL:  fetchTTL,
		logger:    slog.Default().With("component", "catalog.manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchResult is one provider's upsert outcome, or its fetch error.
type FetchResult struct {
	Provider string
	Upsert   *UpsertResult
	Err      error
}

// FetchAll runs every provider concurrently and merges each into the
// catalog independently, so one provider's failure never blocks another's
// merge. After all providers complete, the enrichment pipeline (if any)
// runs over the live, non-removed catalog.
func (m *Manager) FetchAll(ctx context.Context, now time.Time) []FetchResult {
	results := make([]FetchResult, len(m.providers))

	var wg sync.WaitGroup
	for i, provider := range m.providers {
		wg.Add(1)
		go func(i int, provider Provider) {
			defer wg.Done()
			results[i] = m.fetchOne(ctx, provider, now)
		}(i, provider)
	}
	wg.Wait()

	if m.enrichment != nil {
		m.runEnrichment(ctx, now)
	}
	return results
}

func (m *Manager) fetchOne(ctx context.Context, provider Provider, now time.Time) FetchResult {
	entries, err := provider.Fetch(ctx)
	if err != nil {
		if recErr := m.db.RecordProviderFailure(ctx, provider.Name(), now, err); recErr != nil {
			m.logger.Warn("failed to record provider failure", "provider", provider.Name(), "error", recErr)
		}
		m.logger.Warn("provider fetch failed", "provider", provider.Name(), "error", err)
		return FetchResult{Provider: provider.Name(), Err: err}
	}

	result, err := m.db.Upsert(ctx, provider.Name(), entries, now)
	if err != nil {
		m.logger.Warn("provider merge failed", "provider", provider.Name(), "error", err)
		return FetchResult{Provider: provider.Name(), Err: err}
	}

	m.logger.Info("provider fetched", "provider", provider.Name(),
		"added", result.Added, "updated", result.Updated, "restored", result.Restored, "removed", result.Removed)
	return FetchResult{Provider: provider.Name(), Upsert: result}
}

func (m *Manager) runEnrichment(ctx context.Context, now time.Time) {
	live, err := m.db.Search(ctx, "", 0)
	if err != nil {
		m.logger.Warn("enrichment: failed to list live entries", "error", err)
		return
	}

	enriched := m.enrichment.Run(ctx, live, now)
	for _, entry := range enriched {
		if _, err := m.db.updatePopularity(ctx, entry.ID, entry.PopularityScore, now); err != nil {
			m.logger.Warn("enrichment: failed to save popularity", "entry", entry.ID, "error", err)
		}
	}
}

// Search proxies to the database.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]harbor.CatalogEntry, error) {
	return m.db.Search(ctx, query, limit)
}

// Get proxies to the database.
func (m *Manager) Get(ctx context.Context, id string) (harbor.CatalogEntry, bool, error) {
	return m.db.Get(ctx, id)
}

// IsStale reports whether the catalog needs a refetch.
func (m *Manager) IsStale(ctx context.Context, now time.Time) (bool, error) {
	return m.db.IsStale(ctx, now, m.fetchTTL)
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// RunWorker runs FetchAll immediately and then on a fixed interval until ctx
// is canceled. This is the catalog-worker subcommand's main loop, run as a
// forked child process separate from the helper's native-messaging loop.
func (m *Manager) RunWorker(ctx context.Context, interval time.Duration) {
	m.FetchAll(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.FetchAll(ctx, now)
		}
	}
}
