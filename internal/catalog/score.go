package catalog

import (
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Fixed scoring weights. A remote-callable endpoint outweighs everything
// else, since it needs no local install step.
const (
	weightRemoteEndpoint = 1000
	weightRemoteCapable  = 400
	weightFeatured       = 500
	weightOfficialTag    = 300
	weightOfficialSource = 200
	weightHasDescription = 50
	weightHasRepo        = 25
	weightRecentUpdate   = 100
	maxPopularityWeight  = 500

	recentUpdateWindow = 7 * 24 * time.Hour
)

// PriorityScore computes an entry's search-ranking score as of now. Callers
// pass the entry's own LastSeenAt as the "recent update" signal: a fetch
// that re-confirms an entry counts as a recent update even if none of its
// fields changed.
func PriorityScore(entry harbor.CatalogEntry, now time.Time) int {
	score := 0
	if entry.EndpointURL != "" {
		score += weightRemoteEndpoint
	}
	if entry.RemoteCapable {
		score += weightRemoteCapable
	}
	if entry.Featured {
		score += weightFeatured
	}
	if entry.OfficialTag {
		score += weightOfficialTag
	}
	if entry.OfficialSource {
		score += weightOfficialSource
	}
	if entry.Description != "" {
		score += weightHasDescription
	}
	if entry.RepositoryURL != "" {
		score += weightHasRepo
	}
	if !entry.LastSeenAt.IsZero() && now.Sub(entry.LastSeenAt) <= recentUpdateWindow {
		score += weightRecentUpdate
	}

	popularity := entry.PopularityScore
	if popularity > maxPopularityWeight {
		popularity = maxPopularityWeight
	}
	score += popularity

	return score
}
