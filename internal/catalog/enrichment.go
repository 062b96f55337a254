package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborhq/harbor-helper/internal/ratelimit"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Enricher supplements a catalog entry with data a discovery provider
// doesn't carry itself — star counts, download counts, last-release dates.
// Enrichers never touch the base catalog fields (name, endpoint, source);
// they only report a popularity signal.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, entry harbor.CatalogEntry) (popularity int, err error)
}

// enrichmentCacheEntry is one cached enricher result.
type enrichmentCacheEntry struct {
	popularity int
	expiresAt  time.Time
}

// enrichmentCache is a TTL value cache keyed by "enricher:entryID", similar
// in shape to a dedupe cache but storing a value alongside the timestamp
// since enrichment results are reused, not just deduplicated.
type enrichmentCache struct {
	mu      sync.Mutex
	entries map[string]enrichmentCacheEntry
	ttl     time.Duration
}

func newEnrichmentCache(ttl time.Duration) *enrichmentCache {
	return &enrichmentCache{entries: make(map[string]enrichmentCacheEntry), ttl: ttl}
}

func (c *enrichmentCache) get(key string, now time.Time) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		return 0, false
	}
	return entry.popularity, true
}

func (c *enrichmentCache) put(key string, popularity int, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = enrichmentCacheEntry{popularity: popularity, expiresAt: now.Add(c.ttl)}
}

// EnrichmentPipeline runs a set of enrichers over catalog entries in
// bounded-concurrency batches, with a delay between batches to respect
// each enricher's external rate limit. A failing enricher never blocks the
// base catalog: Run logs and continues.
type EnrichmentPipeline struct {
	enrichers  []Enricher
	cache      *enrichmentCache
	limiter    *ratelimit.Limiter
	batchSize  int
	batchDelay time.Duration
	logger     *slog.Logger
}

// EnrichmentConfig configures a pipeline.
type EnrichmentConfig struct {
	BatchSize      int
	BatchDelay     time.Duration
	CacheTTL       time.Duration
	RequestsPerSec float64
}

// NewEnrichmentPipeline creates a pipeline over the given enrichers.
func NewEnrichmentPipeline(enrichers []Enricher, cfg EnrichmentConfig, logger *slog.Logger) *EnrichmentPipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EnrichmentPipeline{
		enrichers: enrichers,
		cache:     newEnrichmentCache(cfg.CacheTTL),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RequestsPerSec,
			Enabled:           cfg.RequestsPerSec > 0,
		}),
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		logger:     logger.With("component", "catalog.enrichment"),
	}
}

// Run enriches every entry's PopularityScore in place by running all
// enrichers over it in bounded-concurrency batches, taking the maximum
// popularity signal across enrichers for each entry.
func (p *EnrichmentPipeline) Run(ctx context.Context, entries []harbor.CatalogEntry, now time.Time) []harbor.CatalogEntry {
	out := make([]harbor.CatalogEntry, len(entries))
	copy(out, entries)

	for start := 0; start < len(out); start += p.batchSize {
		end := start + p.batchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i].PopularityScore = p.enrichOne(ctx, out[i], now)
			}(i)
		}
		wg.Wait()

		if end < len(out) && p.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(p.batchDelay):
			}
		}
	}
	return out
}

func (p *EnrichmentPipeline) enrichOne(ctx context.Context, entry harbor.CatalogEntry, now time.Time) int {
	best := entry.PopularityScore
	for _, enricher := range p.enrichers {
		key := enricher.Name() + ":" + entry.ID
		if cached, ok := p.cache.get(key, now); ok {
			if cached > best {
				best = cached
			}
			continue
		}

		if !p.limiter.Allow(enricher.Name()) {
			continue
		}

		popularity, err := enricher.Enrich(ctx, entry)
		if err != nil {
			p.logger.Warn("enrichment failed", "enricher", enricher.Name(), "entry", entry.ID, "error", err)
			continue
		}
		p.cache.put(key, popularity, now)
		if popularity > best {
			best = popularity
		}
	}
	return best
}
