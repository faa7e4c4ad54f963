// Package store persists verdicts, the evaluation cache, and the durable
// review queue in a local sqlite database.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/review"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verdicts (
		id TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		rubric_version TEXT NOT NULL,
		overall_score REAL NOT NULL,
		decision TEXT NOT NULL,
		confidence REAL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- eval_cache keys verdicts by content hash so identical content under the
	-- same rubric version is never re-evaluated
	CREATE TABLE IF NOT EXISTS eval_cache (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		rubric_version TEXT NOT NULL,
		payload TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(content_hash, rubric_version)
	);

	CREATE TABLE IF NOT EXISTS review_queue (
		content_id TEXT PRIMARY KEY,
		verdict_id TEXT NOT NULL,
		content TEXT NOT NULL,
		reason TEXT,
		score REAL,
		attempts INTEGER DEFAULT 1,
		status TEXT DEFAULT 'pending',
		notes TEXT DEFAULT '',
		enqueued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_content ON verdicts(content_id);
	CREATE INDEX IF NOT EXISTS idx_cache_lookup ON eval_cache(content_hash, rubric_version);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON review_queue(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveVerdict appends a verdict to the history. Verdicts are immutable, so
// this is insert-only.
func (s *Store) SaveVerdict(ctx context.Context, v *internal.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts (id, content_id, rubric_version, overall_score, decision, confidence, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ContentID, v.RubricVersion, v.OverallScore, string(v.Decision), v.Confidence, string(payload), v.CreatedAt)
	return err
}

// ListVerdicts returns the full verdict history for a content id, oldest
// first.
func (s *Store) ListVerdicts(ctx context.Context, contentID string) ([]internal.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM verdicts WHERE content_id = ? ORDER BY created_at, id`, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []internal.Verdict
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v internal.Verdict
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// GetCachedVerdict returns the cached verdict for content under a rubric
// version, bumping the usage counter on a hit. Invalidated entries miss.
func (s *Store) GetCachedVerdict(ctx context.Context, content, rubricVersion string) (*internal.Verdict, bool, error) {
	hash := contentHash(content)

	var payload string
	var invalidated bool
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, invalidated FROM eval_cache WHERE content_hash = ? AND rubric_version = ?`,
		hash, rubricVersion).Scan(&payload, &invalidated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if invalidated {
		return nil, false, nil
	}

	var v internal.Verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE eval_cache SET usage_count = usage_count + 1, last_used = ? WHERE content_hash = ? AND rubric_version = ?`,
		time.Now(), hash, rubricVersion)
	return &v, true, err
}

// SaveToCache stores a verdict under the content's hash, replacing any
// previous entry for the same content and rubric version.
func (s *Store) SaveToCache(ctx context.Context, content, rubricVersion string, v *internal.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	id := fmt.Sprintf("ec_%d", time.Now().UnixNano())
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO eval_cache (id, content_hash, rubric_version, payload, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, contentHash(content), rubricVersion, string(payload), time.Now(), time.Now())
	return err
}

// InvalidateCacheForRubric marks every cached verdict produced under the
// given rubric version stale. Used when a rubric is edited in place.
func (s *Store) InvalidateCacheForRubric(ctx context.Context, rubricVersion string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE eval_cache SET invalidated = TRUE WHERE rubric_version = ?`, rubricVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCache removes all evaluation cache entries.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM eval_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CacheStats summarises evaluation cache usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// Stats returns summary statistics for the evaluation cache.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM eval_cache`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Enqueue inserts a review item, or bumps the attempt counter when the same
// content id is already queued. Re-escalated items return to pending.
func (s *Store) Enqueue(ctx context.Context, item review.Item) (*review.Item, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue (content_id, verdict_id, content, reason, score, attempts, status, enqueued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, 'pending', ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			attempts = attempts + 1,
			verdict_id = excluded.verdict_id,
			content = excluded.content,
			reason = excluded.reason,
			score = excluded.score,
			status = 'pending',
			updated_at = excluded.updated_at`,
		item.ContentID, item.VerdictID, item.Content, item.Reason, item.Score, now, now)
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, item.ContentID)
}

// UpdateStatus moves a queued item to a new workflow state. Non-empty notes
// replace the item's reviewer notes; empty notes leave them untouched.
func (s *Store) UpdateStatus(ctx context.Context, contentID string, status review.Status, notes string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown review status: %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END, updated_at = ? WHERE content_id = ?`,
		string(status), notes, notes, time.Now().UTC(), contentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return review.ErrNotFound
	}
	return nil
}

// ListPending returns pending review items oldest first.
func (s *Store) ListPending(ctx context.Context) ([]review.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_id, verdict_id, content, reason, score, attempts, status, notes, enqueued_at, updated_at
		 FROM review_queue WHERE status = 'pending' ORDER BY enqueued_at, content_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []review.Item
	for rows.Next() {
		var item review.Item
		var status string
		if err := rows.Scan(&item.ContentID, &item.VerdictID, &item.Content, &item.Reason, &item.Score, &item.Attempts, &status, &item.Notes, &item.EnqueuedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Status = review.Status(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes a review item outright.
func (s *Store) Remove(ctx context.Context, contentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_queue WHERE content_id = ?`, contentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return review.ErrNotFound
	}
	return nil
}

func (s *Store) getItem(ctx context.Context, contentID string) (*review.Item, error) {
	var item review.Item
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_id, verdict_id, content, reason, score, attempts, status, notes, enqueued_at, updated_at
		 FROM review_queue WHERE content_id = ?`, contentID).
		Scan(&item.ContentID, &item.VerdictID, &item.Content, &item.Reason, &item.Score, &item.Attempts, &status, &item.Notes, &item.EnqueuedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, review.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Status = review.Status(status)
	return &item, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// contentHash returns the cache key for content: sha256 over the trimmed,
// NFC-normalized text, so byte-level Unicode variants share one entry.
func contentHash(content string) string {
	normalized := norm.NFC.String(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
