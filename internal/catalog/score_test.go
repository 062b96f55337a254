package catalog

import (
	"testing"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func TestPriorityScore_Weights(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	entry := harbor.CatalogEntry{
		EndpointURL:     "https://example.com/mcp",
		RemoteCapable:   true,
		Featured:        true,
		OfficialTag:     true,
		OfficialSource:  true,
		Description:     "does things",
		RepositoryURL:   "https://github.com/x/y",
		LastSeenAt:      now,
		PopularityScore: 9999,
	}

	want := weightRemoteEndpoint + weightRemoteCapable + weightFeatured + weightOfficialTag +
		weightOfficialSource + weightHasDescription + weightHasRepo + weightRecentUpdate + maxPopularityWeight

	if got := PriorityScore(entry, now); got != want {
		t.Fatalf("expected score %d, got %d", want, got)
	}
}

func TestPriorityScore_MinimalEntry(t *testing.T) {
	now := time.Now()
	entry := harbor.CatalogEntry{Name: "bare"}
	if got := PriorityScore(entry, now); got != 0 {
		t.Fatalf("expected 0 for bare entry, got %d", got)
	}
}

func TestPriorityScore_StaleUpdateDoesNotScore(t *testing.T) {
	now := time.Now()
	entry := harbor.CatalogEntry{LastSeenAt: now.Add(-14 * 24 * time.Hour)}
	if got := PriorityScore(entry, now); got != 0 {
		t.Fatalf("expected stale entry to score 0, got %d", got)
	}
}

func TestPriorityScore_CapsPopularity(t *testing.T) {
	now := time.Now()
	entry := harbor.CatalogEntry{PopularityScore: 1_000_000}
	if got := PriorityScore(entry, now); got != maxPopularityWeight {
		t.Fatalf("expected popularity to cap at %d, got %d", maxPopularityWeight, got)
	}
}
