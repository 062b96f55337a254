package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

type fakeEnricher struct {
	name       string
	popularity int
	calls      int
}

func (f *fakeEnricher) Name() string { return f.name }

func (f *fakeEnricher) Enrich(ctx context.Context, entry harbor.CatalogEntry) (int, error) {
	f.calls++
	return f.popularity, nil
}

func TestEnrichmentPipeline_TakesMaxAcrossEnrichers(t *testing.T) {
	stars := &fakeEnricher{name: "stars", popularity: 50}
	downloads := &fakeEnricher{name: "downloads", popularity: 300}

	pipeline := NewEnrichmentPipeline([]Enricher{stars, downloads}, EnrichmentConfig{BatchSize: 2}, nil)
	entries := []harbor.CatalogEntry{{ID: "a", Name: "A"}}

	out := pipeline.Run(context.Background(), entries, time.Now())
	if out[0].PopularityScore != 300 {
		t.Fatalf("expected max popularity 300, got %d", out[0].PopularityScore)
	}
}

func TestEnrichmentPipeline_CachesWithinTTL(t *testing.T) {
	stars := &fakeEnricher{name: "stars", popularity: 50}
	pipeline := NewEnrichmentPipeline([]Enricher{stars}, EnrichmentConfig{BatchSize: 1, CacheTTL: time.Hour}, nil)
	entries := []harbor.CatalogEntry{{ID: "a", Name: "A"}}

	now := time.Now()
	pipeline.Run(context.Background(), entries, now)
	pipeline.Run(context.Background(), entries, now.Add(time.Minute))

	if stars.calls != 1 {
		t.Fatalf("expected cached second run to skip re-enriching, got %d calls", stars.calls)
	}
}

func TestEnrichmentPipeline_RefetchesAfterTTLExpires(t *testing.T) {
	stars := &fakeEnricher{name: "stars", popularity: 50}
	pipeline := NewEnrichmentPipeline([]Enricher{stars}, EnrichmentConfig{BatchSize: 1, CacheTTL: time.Minute}, nil)
	entries := []harbor.CatalogEntry{{ID: "a", Name: "A"}}

	now := time.Now()
	pipeline.Run(context.Background(), entries, now)
	pipeline.Run(context.Background(), entries, now.Add(2*time.Hour))

	if stars.calls != 2 {
		t.Fatalf("expected expired cache entry to trigger a second call, got %d calls", stars.calls)
	}
}
