package cadence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cadencehq/cadence/metrics"
)

// Compile-time check that Store satisfies the aggregator's collaborator
// interface.
var _ metrics.Store = (*Store)(nil)

// ReviewsInRange returns the aggregator's view of the review log in
// [from, to), oldest first.
func (s *Store) ReviewsInRange(userID string, from, to time.Time) ([]metrics.Review, error) {
	outcomes, err := s.ReviewOutcomes(userID, from, to)
	if err != nil {
		return nil, err
	}

	results := make([]metrics.Review, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, metricsRow(o))
	}
	return results, nil
}

// RecentReviews returns up to limit of the user's most recent reviews,
// newest first.
func (s *Store) RecentReviews(userID string, limit int) ([]metrics.Review, error) {
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
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent reviews: %w", err)
	}
	defer rows.Close()

	var results []metrics.Review
	for rows.Next() {
		outcome, err := scanReviewOutcome(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, metricsRow(*outcome))
	}

	return results, rows.Err()
}

// ReviewsForSession returns the reviews of one session, oldest first.
func (s *Store) ReviewsForSession(userID, sessionID string) ([]metrics.Review, error) {
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
		WHERE user_id = ? AND session_id = ?
		ORDER BY created_at ASC
	`, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query session reviews: %w", err)
	}
	defer rows.Close()

	var results []metrics.Review
	for rows.Next() {
		outcome, err := scanReviewOutcome(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, metricsRow(*outcome))
	}

	return results, rows.Err()
}

// CategoryExists reports whether the category id belongs to the user.
func (s *Store) CategoryExists(userID, categoryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM categories WHERE id = ? AND user_id = ?
	`, categoryID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check category: %w", err)
	}
	return true, nil
}

// UpsertDailyMetrics replaces the derived daily aggregate rows. Re-running
// a refresh writes identical rows over identical keys.
func (s *Store) UpsertDailyMetrics(userID string, dailies []metrics.DailyMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range dailies {
		_, err := tx.Exec(`
			INSERT INTO daily_metrics (user_id, date, review_count, pass_count, fail_count,
				learning_count, graduated_count, observed_recall_rate, avg_predicted_recall,
				brier_score, duration_p50_ms, duration_p90_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, date) DO UPDATE SET
				review_count = excluded.review_count,
				pass_count = excluded.pass_count,
				fail_count = excluded.fail_count,
				learning_count = excluded.learning_count,
				graduated_count = excluded.graduated_count,
				observed_recall_rate = excluded.observed_recall_rate,
				avg_predicted_recall = excluded.avg_predicted_recall,
				brier_score = excluded.brier_score,
				duration_p50_ms = excluded.duration_p50_ms,
				duration_p90_ms = excluded.duration_p90_ms
		`,
			userID, m.Date, m.ReviewCount, m.PassCount, m.FailCount,
			m.LearningCount, m.GraduatedCount, m.ObservedRecallRate, m.AvgPredictedRecall,
			m.BrierScore, m.DurationP50Ms, m.DurationP90Ms,
		)
		if err != nil {
			return fmt.Errorf("store: upsert daily metric %s: %w", m.Date, err)
		}
	}

	return tx.Commit()
}

// UpsertSessionMetrics replaces the derived session aggregate rows.
func (s *Store) UpsertSessionMetrics(userID string, sessions []metrics.SessionMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range sessions {
		_, err := tx.Exec(`
			INSERT INTO session_metrics (user_id, session_id, started_at, ended_at,
				review_count, pass_count, fail_count, learning_count, graduated_count,
				observed_recall_rate, avg_predicted_recall, brier_score, duration_p50_ms, duration_p90_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, session_id) DO UPDATE SET
				started_at = excluded.started_at,
				ended_at = excluded.ended_at,
				review_count = excluded.review_count,
				pass_count = excluded.pass_count,
				fail_count = excluded.fail_count,
				learning_count = excluded.learning_count,
				graduated_count = excluded.graduated_count,
				observed_recall_rate = excluded.observed_recall_rate,
				avg_predicted_recall = excluded.avg_predicted_recall,
				brier_score = excluded.brier_score,
				duration_p50_ms = excluded.duration_p50_ms,
				duration_p90_ms = excluded.duration_p90_ms
		`,
			userID, m.SessionID,
			m.StartedAt.UTC().Format(time.RFC3339), m.EndedAt.UTC().Format(time.RFC3339),
			m.ReviewCount, m.PassCount, m.FailCount, m.LearningCount, m.GraduatedCount,
			m.ObservedRecallRate, m.AvgPredictedRecall, m.BrierScore, m.DurationP50Ms, m.DurationP90Ms,
		)
		if err != nil {
			return fmt.Errorf("store: upsert session metric %s: %w", m.SessionID, err)
		}
	}

	return tx.Commit()
}

// DailyMetrics returns the derived daily rows for dates in [from, to],
// both YYYY-MM-DD, oldest first.
func (s *Store) DailyMetrics(userID, from, to string) ([]metrics.DailyMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT user_id, date, review_count, pass_count, fail_count, learning_count, graduated_count,
		       observed_recall_rate, avg_predicted_recall, brier_score, duration_p50_ms, duration_p90_ms
		FROM daily_metrics
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: query daily metrics: %w", err)
	}
	defer rows.Close()

	var results []metrics.DailyMetric
	for rows.Next() {
		var m metrics.DailyMetric
		err := rows.Scan(
			&m.UserID, &m.Date, &m.ReviewCount, &m.PassCount, &m.FailCount,
			&m.LearningCount, &m.GraduatedCount, &m.ObservedRecallRate, &m.AvgPredictedRecall,
			&m.BrierScore, &m.DurationP50Ms, &m.DurationP90Ms,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}

	return results, rows.Err()
}
