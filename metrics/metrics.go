// Package metrics rolls raw review outcomes into calibration statistics:
// daily and session aggregates, period summaries with deltas, and fixed
// trailing windows. Aggregates are always recomputable from the review log
// and are never a source of truth.
package metrics

import (
	"errors"
	"time"
)

// ErrCategoryNotFound is returned for a category id that does not exist or
// does not belong to the requesting user.
var ErrCategoryNotFound = errors.New("category not found")

// Reliability labels how much statistical weight to place on a metric given
// its sample size.
type Reliability string

const (
	ReliabilityLow    Reliability = "low"
	ReliabilityMedium Reliability = "medium"
	ReliabilityHigh   Reliability = "high"
)

// Review is the aggregator's read-only view of one review-log row. The
// persistence layer materializes these; the aggregator never queries
// storage itself.
type Review struct {
	ID              string    `json:"id"`
	CardID          string    `json:"card_id"`
	SessionID       string    `json:"session_id,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	Rating          int       `json:"rating"` // 1..4
	ReviewTimeMs    int       `json:"review_time_ms"`
	PredictedRecall float64   `json:"predicted_recall"` // pre-review retrievability
	ReviewState     string    `json:"review_state,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Passed reports whether the review counts as a successful recall.
func (r Review) Passed() bool {
	return r.Rating >= 2
}

// Learning reports whether the review belongs to the learning bucket.
// Unset review states default to learning.
func (r Review) Learning() bool {
	return r.ReviewState != "review"
}

// DailyMetric is the derived per-(user, date) aggregate.
type DailyMetric struct {
	UserID             string  `json:"user_id"`
	Date               string  `json:"date"` // YYYY-MM-DD after day-start shift
	ReviewCount        int     `json:"review_count"`
	PassCount          int     `json:"pass_count"`
	FailCount          int     `json:"fail_count"`
	LearningCount      int     `json:"learning_count"`
	GraduatedCount     int     `json:"graduated_count"`
	ObservedRecallRate float64 `json:"observed_recall_rate"`
	AvgPredictedRecall float64 `json:"avg_predicted_recall"`
	BrierScore         float64 `json:"brier_score"`
	DurationP50Ms      float64 `json:"duration_p50_ms"`
	DurationP90Ms      float64 `json:"duration_p90_ms"`
}

// SessionMetric is the derived per-(user, session) aggregate.
type SessionMetric struct {
	UserID             string    `json:"user_id"`
	SessionID          string    `json:"session_id"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
	ReviewCount        int       `json:"review_count"`
	PassCount          int       `json:"pass_count"`
	FailCount          int       `json:"fail_count"`
	LearningCount      int       `json:"learning_count"`
	GraduatedCount     int       `json:"graduated_count"`
	ObservedRecallRate float64   `json:"observed_recall_rate"`
	AvgPredictedRecall float64   `json:"avg_predicted_recall"`
	BrierScore         float64   `json:"brier_score"`
	DurationP50Ms      float64   `json:"duration_p50_ms"`
	DurationP90Ms      float64   `json:"duration_p90_ms"`
}

// PeriodSummary aggregates one period of reviews. Zero-sample periods are a
// normal state and produce zero values, not errors.
type PeriodSummary struct {
	ReviewCount        int         `json:"review_count"`
	PassCount          int         `json:"pass_count"`
	FailCount          int         `json:"fail_count"`
	LearningCount      int         `json:"learning_count"`
	GraduatedCount     int         `json:"graduated_count"`
	ObservedRecallRate float64     `json:"observed_recall_rate"`
	AvgPredictedRecall float64     `json:"avg_predicted_recall"`
	AvgBrierScore      float64     `json:"avg_brier_score"`
	Reliability        Reliability `json:"reliability"`
}

// Deltas holds current minus previous, per field independently.
type Deltas struct {
	ReviewCount        int     `json:"review_count"`
	PassCount          int     `json:"pass_count"`
	FailCount          int     `json:"fail_count"`
	ObservedRecallRate float64 `json:"observed_recall_rate"`
	AvgPredictedRecall float64 `json:"avg_predicted_recall"`
	AvgBrierScore      float64 `json:"avg_brier_score"`
}

// Summary compares the current period against the immediately preceding
// period of equal length.
type Summary struct {
	Current  PeriodSummary `json:"current"`
	Previous PeriodSummary `json:"previous"`
	Deltas   Deltas        `json:"deltas"`
}

// WindowStat is a fixed-size trailing window over the most recent reviews.
// The reliability label reflects the window's intrinsic statistical power,
// independent of how many reviews actually populate it.
type WindowStat struct {
	Size               int         `json:"size"`
	Reliability        Reliability `json:"reliability"`
	ReviewCount        int         `json:"review_count"`
	ObservedRecallRate float64     `json:"observed_recall_rate"`
	AvgPredictedRecall float64     `json:"avg_predicted_recall"`
	AvgBrierScore      float64     `json:"avg_brier_score"`
}
