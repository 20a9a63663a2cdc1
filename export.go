package cadence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportHeader is the first line of a JSONL export.
type ExportHeader struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	SourceID   string    `json:"source_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
}

// ExportReviewLog streams the user's review-log rows in [from, to) as
// JSONL: one header line, then one row per line, oldest first. Rows stream
// straight from the cursor, so exports of large logs stay flat in memory.
func (s *Store) ExportReviewLog(ctx context.Context, w io.Writer, sourceID, userID string, from, to time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	enc := json.NewEncoder(w)
	header := ExportHeader{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		SourceID:   sourceID,
		UserID:     userID,
		Kind:       "review_log",
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, card_id, session_id, category_id, rating, review_time_ms,
		       elapsed_days, scheduled_days, stability_before, difficulty_before, retrievability_before,
		       review_state, created_at
		FROM review_log
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`, userID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("query review log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outcome, err := scanReviewOutcome(rows)
		if err != nil {
			return fmt.Errorf("scan review: %w", err)
		}
		if err := enc.Encode(outcome); err != nil {
			return fmt.Errorf("encode review: %w", err)
		}
	}

	return rows.Err()
}

// ExportDailyMetrics streams the user's derived daily aggregates for dates
// in [from, to], both YYYY-MM-DD, as JSONL with a header line.
func (s *Store) ExportDailyMetrics(ctx context.Context, w io.Writer, sourceID, userID, from, to string) error {
	dailies, err := s.DailyMetrics(userID, from, to)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	header := ExportHeader{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		SourceID:   sourceID,
		UserID:     userID,
		Kind:       "daily_metrics",
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, m := range dailies {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode daily metric: %w", err)
		}
	}
	return nil
}

// ExportSQLite writes a self-contained snapshot of the whole store to
// destPath. The write lock is held for the duration, so the snapshot sees
// no in-flight transactions; the WAL is checkpointed into the main file
// first, so the copy opens cleanly with NewStore.
func (s *Store) ExportSQLite(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy snapshot: %w", err)
	}

	return dest.Sync()
}
