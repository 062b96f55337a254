package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Search performs a case-insensitive substring match over name, description,
// and tags, excluding tombstoned entries, ordered by priorityScore DESC,
// name ASC. An empty query returns the full non-removed catalog in that
// same order.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]harbor.CatalogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, source, endpoint_url, packages, description, repository_url, tags,
			first_seen_at, last_seen_at, is_removed, removed_at, priority_score, popularity_score,
			featured, official_tag, official_source, remote_capable
		FROM catalog_entries
		WHERE is_removed = 0
		  AND (? = '' OR name LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE OR tags LIKE ? COLLATE NOCASE)
		ORDER BY priority_score DESC, name ASC
		LIMIT ?`,
		query, like, like, like, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get returns one catalog entry by id, including tombstoned ones (callers
// that want only live entries check IsRemoved).
func (db *DB) Get(ctx context.Context, id string) (harbor.CatalogEntry, bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, source, endpoint_url, packages, description, repository_url, tags,
			first_seen_at, last_seen_at, is_removed, removed_at, priority_score, popularity_score,
			featured, official_tag, official_source, remote_capable
		FROM catalog_entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return harbor.CatalogEntry{}, false, nil
	}
	if err != nil {
		return harbor.CatalogEntry{}, false, fmt.Errorf("get catalog entry %s: %w", id, err)
	}
	return entry, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (harbor.CatalogEntry, error) {
	var e harbor.CatalogEntry
	var packagesJSON, tagsJSON string
	var removedAt sql.NullTime
	var isRemoved int

	err := row.Scan(
		&e.ID, &e.Name, &e.Source, &e.EndpointURL, &packagesJSON, &e.Description, &e.RepositoryURL, &tagsJSON,
		&e.FirstSeenAt, &e.LastSeenAt, &isRemoved, &removedAt, &e.PriorityScore, &e.PopularityScore,
		&e.Featured, &e.OfficialTag, &e.OfficialSource, &e.RemoteCapable,
	)
	if err != nil {
		return harbor.CatalogEntry{}, err
	}

	e.IsRemoved = isRemoved == 1
	if removedAt.Valid {
		e.RemovedAt = &removedAt.Time
	}
	if packagesJSON != "" {
		_ = json.Unmarshal([]byte(packagesJSON), &e.Packages)
	}
	e.Tags = splitTags(tagsJSON)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]harbor.CatalogEntry, error) {
	var out []harbor.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
