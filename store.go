package cadence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cadencehq/cadence/internal/store/migrations"
	"github.com/cadencehq/cadence/metrics"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Store manages the local SQLite review database. It holds the canonical
// memory states, the append-only review log, the parallel journey-event
// log, and the derived metric tables. All timestamps are stored as RFC3339
// UTC strings.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a local review store.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	// Set schema version if not set
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// GetMemoryState retrieves the memory state for one (user, card) pair.
// Returns ErrNotFound for cards that have never been rated.
func (s *Store) GetMemoryState(userID, cardID string) (*MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT user_id, card_id, stability, difficulty, review_state, last_review_at, next_review_at, updated_at
		FROM memory_states WHERE user_id = ? AND card_id = ?
	`, userID, cardID)

	return scanMemoryState(row)
}

// DueMemoryStates returns memory states whose next review is due at or
// before now, soonest first.
func (s *Store) DueMemoryStates(userID string, now time.Time, limit int) ([]MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT user_id, card_id, stability, difficulty, review_state, last_review_at, next_review_at, updated_at
		FROM memory_states
		WHERE user_id = ? AND next_review_at <= ?
		ORDER BY next_review_at ASC
		LIMIT ?
	`, userID, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("store: query due states: %w", err)
	}
	defer rows.Close()

	var results []MemoryState
	for rows.Next() {
		state, err := scanMemoryState(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *state)
	}

	return results, rows.Err()
}

// SaveReview atomically persists the outcome of one rating: the updated
// memory state, the review-log row, and the rated journey event, in a
// single transaction. The journey event insert is idempotent on its
// idempotency key, so a retried submission cannot double-log.
func (s *Store) SaveReview(state *MemoryState, outcome ReviewOutcome, event JourneyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	var lastReviewAt *string
	if state.LastReviewAt != nil {
		ts := state.LastReviewAt.UTC().Format(time.RFC3339)
		lastReviewAt = &ts
	}

	_, err = tx.Exec(`
		INSERT INTO memory_states (user_id, card_id, stability, difficulty, review_state, last_review_at, next_review_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, card_id) DO UPDATE SET
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			review_state = excluded.review_state,
			last_review_at = excluded.last_review_at,
			next_review_at = excluded.next_review_at,
			updated_at = excluded.updated_at
	`,
		state.UserID,
		state.CardID,
		state.Stability,
		state.Difficulty,
		state.ReviewState.String(),
		lastReviewAt,
		state.NextReviewAt.UTC().Format(time.RFC3339),
		state.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: upsert memory state: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO review_log (id, user_id, card_id, session_id, category_id, rating, review_time_ms,
			elapsed_days, scheduled_days, stability_before, difficulty_before, retrievability_before,
			review_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.ID,
		outcome.UserID,
		outcome.CardID,
		nullString(outcome.SessionID),
		nullString(outcome.CategoryID),
		int(outcome.Rating),
		outcome.ReviewTimeMs,
		outcome.ElapsedDays,
		outcome.ScheduledDays,
		outcome.StabilityBefore,
		outcome.DifficultyBefore,
		outcome.RetrievabilityBefore,
		outcome.ReviewState.String(),
		outcome.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: insert review: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO journey_events (id, user_id, session_id, event_type, review_id, idempotency_key, seq, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING
	`,
		event.ID,
		event.UserID,
		event.SessionID,
		string(event.Type),
		nullString(event.ReviewID),
		event.IdempotencyKey,
		event.Seq,
		event.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: insert journey event: %w", err)
	}

	return tx.Commit()
}

// AppendJourneyEvent appends a non-rating journey event (session start/end,
// card shown). Duplicate idempotency keys are silently dropped.
func (s *Store) AppendJourneyEvent(event JourneyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO journey_events (id, user_id, session_id, event_type, review_id, idempotency_key, seq, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING
	`,
		event.ID,
		event.UserID,
		event.SessionID,
		string(event.Type),
		nullString(event.ReviewID),
		event.IdempotencyKey,
		event.Seq,
		event.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: insert journey event: %w", err)
	}
	return nil
}

// ReviewOutcomes returns the review-log rows in [from, to), oldest first.
func (s *Store) ReviewOutcomes(userID string, from, to time.Time) ([]ReviewOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, card_id, session_id, category_id, rating, review_time_ms,
		       elapsed_days, scheduled_days, stability_before, difficulty_before, retrievability_before,
		       review_state, created_at
		FROM review_log
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`, userID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: query review log: %w", err)
	}
	defer rows.Close()

	var results []ReviewOutcome
	for rows.Next() {
		outcome, err := scanReviewOutcome(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *outcome)
	}

	return results, rows.Err()
}

// JourneyEvents returns the journey events in [from, to), oldest first.
func (s *Store) JourneyEvents(userID string, from, to time.Time) ([]JourneyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, session_id, event_type, review_id, idempotency_key, seq, occurred_at
		FROM journey_events
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, seq ASC
	`, userID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: query journey events: %w", err)
	}
	defer rows.Close()

	var results []JourneyEvent
	for rows.Next() {
		var (
			event      JourneyEvent
			eventType  string
			reviewID   sql.NullString
			occurredAt string
		)
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.SessionID,
			&eventType,
			&reviewID,
			&event.IdempotencyKey,
			&event.Seq,
			&occurredAt,
		)
		if err != nil {
			return nil, err
		}
		event.Type = JourneyEventType(eventType)
		if reviewID.Valid {
			event.ReviewID = reviewID.String
		}
		event.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
		results = append(results, event)
	}

	return results, rows.Err()
}

// CreateCategory registers a category for the user and returns its id.
func (s *Store) CreateCategory(userID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	id := ulid.Make().String()
	_, err := s.db.Exec(`
		INSERT INTO categories (id, user_id, name) VALUES (?, ?, ?)
	`, id, userID, name)
	if err != nil {
		return "", fmt.Errorf("store: insert category: %w", err)
	}
	return id, nil
}

// SetLastRefresh records when the derived aggregates were last recomputed.
func (s *Store) SetLastRefresh(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('last_refresh', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, t.UTC().Format(time.RFC3339))
	return err
}

// LastRefresh returns when the derived aggregates were last recomputed, or
// the zero time if never.
func (s *Store) LastRefresh() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return time.Time{}, ErrStoreClosed
	}

	var value sql.NullString
	s.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_refresh'").Scan(&value)

	var t time.Time
	if value.Valid {
		t, _ = time.Parse(time.RFC3339, value.String)
	}
	return t, nil
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var stateCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memory_states").Scan(&stateCount); err != nil {
		return nil, err
	}

	var reviewCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM review_log").Scan(&reviewCount); err != nil {
		return nil, err
	}

	var eventCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM journey_events").Scan(&eventCount); err != nil {
		return nil, err
	}

	var lastRefreshStr sql.NullString
	s.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_refresh'").Scan(&lastRefreshStr)

	var lastRefresh time.Time
	if lastRefreshStr.Valid {
		lastRefresh, _ = time.Parse(time.RFC3339, lastRefreshStr.String)
	}

	return &StoreStats{
		MemoryStateCount:  stateCount,
		ReviewCount:       reviewCount,
		JourneyEventCount: eventCount,
		LastRefreshAt:     lastRefresh,
		SchemaVersion:     schemaVersion,
	}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemoryState(sc scanner) (*MemoryState, error) {
	var (
		state        MemoryState
		reviewState  string
		lastReviewAt sql.NullString
		nextReviewAt string
		updatedAt    string
	)

	err := sc.Scan(
		&state.UserID,
		&state.CardID,
		&state.Stability,
		&state.Difficulty,
		&reviewState,
		&lastReviewAt,
		&nextReviewAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	state.ReviewState = ParseReviewState(reviewState)
	if lastReviewAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastReviewAt.String)
		state.LastReviewAt = &t
	}
	state.NextReviewAt, _ = time.Parse(time.RFC3339, nextReviewAt)
	state.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &state, nil
}

func scanReviewOutcome(sc scanner) (*ReviewOutcome, error) {
	var (
		outcome     ReviewOutcome
		sessionID   sql.NullString
		categoryID  sql.NullString
		rating      int
		reviewState string
		createdAt   string
	)

	err := sc.Scan(
		&outcome.ID,
		&outcome.UserID,
		&outcome.CardID,
		&sessionID,
		&categoryID,
		&rating,
		&outcome.ReviewTimeMs,
		&outcome.ElapsedDays,
		&outcome.ScheduledDays,
		&outcome.StabilityBefore,
		&outcome.DifficultyBefore,
		&outcome.RetrievabilityBefore,
		&reviewState,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if sessionID.Valid {
		outcome.SessionID = sessionID.String
	}
	if categoryID.Valid {
		outcome.CategoryID = categoryID.String
	}
	outcome.Rating = Rating(rating)
	outcome.ReviewState = ParseReviewState(reviewState)
	outcome.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &outcome, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// metricsRow converts a review-log row into the aggregator's read view.
func metricsRow(o ReviewOutcome) metrics.Review {
	return metrics.Review{
		ID:              o.ID,
		CardID:          o.CardID,
		SessionID:       o.SessionID,
		CategoryID:      o.CategoryID,
		Rating:          int(o.Rating),
		ReviewTimeMs:    o.ReviewTimeMs,
		PredictedRecall: o.RetrievabilityBefore,
		ReviewState:     o.ReviewState.String(),
		CreatedAt:       o.CreatedAt,
	}
}
