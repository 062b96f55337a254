package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// UpsertResult summarizes one provider fetch's effect on the catalog.
type UpsertResult struct {
	Added    int
	Updated  int
	Restored int
	Removed  int
}

// Upsert merges one provider's fetch result into the catalog: entries are
// inserted, updated, or have their tombstone cleared; rows previously seen
// from this provider but absent from this fetch are tombstoned. Every
// transition is recorded in change_log.
func (db *DB) Upsert(ctx context.Context, provider string, entries []harbor.CatalogEntry, now time.Time) (*UpsertResult, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	result := &UpsertResult{}
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		entry.ID = deriveEntryID(provider, entry)
		entry.Source = provider
		seen[entry.ID] = struct{}{}

		kind, err := upsertOne(ctx, tx, entry, now)
		if err != nil {
			return nil, err
		}
		switch kind {
		case harbor.ChangeAdded:
			result.Added++
		case harbor.ChangeUpdated:
			result.Updated++
		case harbor.ChangeRestored:
			result.Restored++
		case "":
			// unchanged, no log entry
		}
		if kind != "" {
			if err := logChange(ctx, tx, entry.ID, provider, kind, now); err != nil {
				return nil, err
			}
		}
	}

	removed, err := tombstoneMissing(ctx, tx, provider, seen, now)
	if err != nil {
		return nil, err
	}
	result.Removed = removed

	if err := recordProviderSuccess(ctx, tx, provider, now, len(entries)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert transaction: %w", err)
	}
	return result, nil
}

func upsertOne(ctx context.Context, tx *sql.Tx, entry harbor.CatalogEntry, now time.Time) (harbor.ChangeKind, error) {
	var existing harbor.CatalogEntry
	var isRemoved int
	row := tx.QueryRowContext(ctx, `SELECT name, endpoint_url, description, is_removed FROM catalog_entries WHERE id = ?`, entry.ID)
	err := row.Scan(&existing.Name, &existing.EndpointURL, &existing.Description, &isRemoved)

	score := PriorityScore(entry, now)
	tags, _ := json.Marshal(entry.Tags)
	packages, _ := json.Marshal(entry.Packages)

	if err == sql.ErrNoRows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_entries (
				id, name, source, endpoint_url, packages, description, repository_url, tags,
				first_seen_at, last_seen_at, is_removed, removed_at, priority_score, popularity_score,
				featured, official_tag, official_source, remote_capable
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.Name, entry.Source, entry.EndpointURL, string(packages), entry.Description,
			entry.RepositoryURL, string(tags), now, now, score, entry.PopularityScore,
			boolToInt(entry.Featured), boolToInt(entry.OfficialTag), boolToInt(entry.OfficialSource), boolToInt(entry.RemoteCapable),
		)
		if err != nil {
			return "", fmt.Errorf("insert catalog entry %s: %w", entry.ID, err)
		}
		return harbor.ChangeAdded, nil
	}
	if err != nil {
		return "", fmt.Errorf("query catalog entry %s: %w", entry.ID, err)
	}

	changed := existing.Name != entry.Name || existing.EndpointURL != entry.EndpointURL || existing.Description != entry.Description
	wasRemoved := isRemoved == 1

	_, err = tx.ExecContext(ctx, `
		UPDATE catalog_entries SET
			name = ?, endpoint_url = ?, packages = ?, description = ?, repository_url = ?, tags = ?,
			last_seen_at = ?, is_removed = 0, removed_at = NULL, priority_score = ?, popularity_score = ?,
			featured = ?, official_tag = ?, official_source = ?, remote_capable = ?
		WHERE id = ?`,
		entry.Name, entry.EndpointURL, string(packages), entry.Description, entry.RepositoryURL, string(tags),
		now, score, entry.PopularityScore,
		boolToInt(entry.Featured), boolToInt(entry.OfficialTag), boolToInt(entry.OfficialSource), boolToInt(entry.RemoteCapable),
		entry.ID,
	)
	if err != nil {
		return "", fmt.Errorf("update catalog entry %s: %w", entry.ID, err)
	}

	if wasRemoved {
		return harbor.ChangeRestored, nil
	}
	if changed {
		return harbor.ChangeUpdated, nil
	}
	return "", nil
}

func tombstoneMissing(ctx context.Context, tx *sql.Tx, provider string, seen map[string]struct{}, now time.Time) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM catalog_entries WHERE source = ? AND is_removed = 0`, provider)
	if err != nil {
		return 0, fmt.Errorf("list existing entries for %s: %w", provider, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE catalog_entries SET is_removed = 1, removed_at = ? WHERE id = ?`, now, id); err != nil {
			return 0, fmt.Errorf("tombstone entry %s: %w", id, err)
		}
		if err := logChange(ctx, tx, id, provider, harbor.ChangeRemoved, now); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func logChange(ctx context.Context, tx *sql.Tx, entryID, provider string, kind harbor.ChangeKind, now time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO change_log (entry_id, provider, kind, occurred_at) VALUES (?, ?, ?, ?)`,
		entryID, provider, string(kind), now)
	if err != nil {
		return fmt.Errorf("log change for %s: %w", entryID, err)
	}
	return nil
}

func recordProviderSuccess(ctx context.Context, tx *sql.Tx, provider string, now time.Time, count int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO provider_status (provider, last_attempt_at, last_success_at, last_error, entry_count)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(provider) DO UPDATE SET
			last_attempt_at = excluded.last_attempt_at,
			last_success_at = excluded.last_success_at,
			last_error = '',
			entry_count = excluded.entry_count`,
		provider, now, now, count,
	)
	if err != nil {
		return fmt.Errorf("record provider status for %s: %w", provider, err)
	}
	return nil
}

// RecordProviderFailure records a failed fetch attempt without touching
// last_success_at, so staleness tracking still reflects the last fetch
// that actually produced entries.
func (db *DB) RecordProviderFailure(ctx context.Context, provider string, now time.Time, fetchErr error) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO provider_status (provider, last_attempt_at, last_error, entry_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(provider) DO UPDATE SET
			last_attempt_at = excluded.last_attempt_at,
			last_error = excluded.last_error`,
		provider, now, fetchErr.Error(),
	)
	if err != nil {
		return fmt.Errorf("record provider failure for %s: %w", provider, err)
	}
	return nil
}

// ProviderStatus is one provider's last-fetch bookkeeping row.
type ProviderStatus struct {
	Provider      string
	LastAttemptAt *time.Time
	LastSuccessAt *time.Time
	LastError     string
	EntryCount    int
}

// ProviderStatuses returns bookkeeping rows for every provider that has
// attempted at least one fetch.
func (db *DB) ProviderStatuses(ctx context.Context) ([]ProviderStatus, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT provider, last_attempt_at, last_success_at, last_error, entry_count FROM provider_status`)
	if err != nil {
		return nil, fmt.Errorf("query provider statuses: %w", err)
	}
	defer rows.Close()

	var out []ProviderStatus
	for rows.Next() {
		var s ProviderStatus
		var lastAttempt, lastSuccess sql.NullTime
		if err := rows.Scan(&s.Provider, &lastAttempt, &lastSuccess, &s.LastError, &s.EntryCount); err != nil {
			return nil, err
		}
		if lastAttempt.Valid {
			s.LastAttemptAt = &lastAttempt.Time
		}
		if lastSuccess.Valid {
			s.LastSuccessAt = &lastSuccess.Time
		}
		out = append(out, s)
	}
	return out, nil
}

// IsStale reports whether the oldest provider success timestamp is older
// than maxAge. A provider that has never succeeded counts as stale.
func (db *DB) IsStale(ctx context.Context, now time.Time, maxAge time.Duration) (bool, error) {
	statuses, err := db.ProviderStatuses(ctx)
	if err != nil {
		return true, err
	}
	if len(statuses) == 0 {
		return true, nil
	}
	for _, s := range statuses {
		if s.LastSuccessAt == nil || now.Sub(*s.LastSuccessAt) >= maxAge {
			return true, nil
		}
	}
	return false, nil
}

// updatePopularity saves an enrichment pipeline's popularity result and
// recomputes priority_score, since popularity feeds into the score.
func (db *DB) updatePopularity(ctx context.Context, id string, popularity int, now time.Time) (harbor.CatalogEntry, error) {
	entry, ok, err := db.Get(ctx, id)
	if err != nil || !ok {
		return harbor.CatalogEntry{}, err
	}
	entry.PopularityScore = popularity
	score := PriorityScore(entry, now)

	_, err = db.conn.ExecContext(ctx, `UPDATE catalog_entries SET popularity_score = ?, priority_score = ? WHERE id = ?`,
		popularity, score, id)
	if err != nil {
		return harbor.CatalogEntry{}, fmt.Errorf("update popularity for %s: %w", id, err)
	}
	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
