package metrics

import (
	"fmt"
	"time"
)

// Store is the persistence collaborator the aggregator reads rows from and
// writes derived aggregates through. Implementations own all storage
// latency, retries, and errors; the aggregator neither retries nor caches.
type Store interface {
	ReviewsInRange(userID string, from, to time.Time) ([]Review, error)
	RecentReviews(userID string, limit int) ([]Review, error)
	ReviewsForSession(userID, sessionID string) ([]Review, error)
	CategoryExists(userID, categoryID string) (bool, error)
	UpsertDailyMetrics(userID string, metrics []DailyMetric) error
	UpsertSessionMetrics(userID string, metrics []SessionMetric) error
}

// Config tunes the aggregator. Zero values fall back to defaults.
type Config struct {
	// ReliabilityMediumAt and ReliabilityHighAt band a variable-length
	// period's reliability from its actual review count.
	// Defaults: 50 and 200.
	ReliabilityMediumAt int
	ReliabilityHighAt   int

	// DayStartHour shifts the day boundary for daily bucketing.
	DayStartHour int

	// WindowSizes are the fixed trailing window sizes, smallest to largest.
	// Defaults to 100, 300, 1000.
	WindowSizes [3]int
}

func (c Config) withDefaults() Config {
	if c.ReliabilityMediumAt == 0 {
		c.ReliabilityMediumAt = 50
	}
	if c.ReliabilityHighAt == 0 {
		c.ReliabilityHighAt = 200
	}
	if c.WindowSizes == ([3]int{}) {
		c.WindowSizes = [3]int{100, 300, 1000}
	}
	return c
}

// windowReliability maps a window's position in the size ladder to its
// intrinsic label, regardless of how full the window is.
var windowReliability = [3]Reliability{ReliabilityLow, ReliabilityMedium, ReliabilityHigh}

// Aggregator converts review-log rows into calibration statistics.
type Aggregator struct {
	store Store
	cfg   Config
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store Store, cfg Config) *Aggregator {
	return &Aggregator{store: store, cfg: cfg.withDefaults()}
}

// Refresh recomputes daily and session aggregates over the backfill window
// ending at now and upserts them. It is idempotent: re-running replaces the
// same row keys with identical values, so concurrent refreshes for one user
// are safe.
func (a *Aggregator) Refresh(userID string, backfillDays int, now time.Time) error {
	from := now.AddDate(0, 0, -backfillDays)
	rows, err := a.store.ReviewsInRange(userID, from, now)
	if err != nil {
		return fmt.Errorf("metrics: fetch reviews: %w", err)
	}

	daily := DailyRollup(userID, rows, a.cfg.DayStartHour)
	if err := a.store.UpsertDailyMetrics(userID, daily); err != nil {
		return fmt.Errorf("metrics: upsert daily: %w", err)
	}

	sessions := SessionRollup(userID, rows)
	if err := a.store.UpsertSessionMetrics(userID, sessions); err != nil {
		return fmt.Errorf("metrics: upsert sessions: %w", err)
	}
	return nil
}

// Summary compares the period of periodDays ending at now against the
// immediately preceding period of equal length.
func (a *Aggregator) Summary(userID string, periodDays int, now time.Time) (*Summary, error) {
	currentFrom := now.AddDate(0, 0, -periodDays)
	previousFrom := now.AddDate(0, 0, -2*periodDays)

	current, err := a.store.ReviewsInRange(userID, currentFrom, now)
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch current period: %w", err)
	}
	previous, err := a.store.ReviewsInRange(userID, previousFrom, currentFrom)
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch previous period: %w", err)
	}

	return a.buildSummary(current, previous), nil
}

// CategorySummary is Summary restricted to reviews of cards in one
// category. A category that does not exist for this user is rejected with
// ErrCategoryNotFound rather than silently yielding empty stats.
func (a *Aggregator) CategorySummary(userID, categoryID string, periodDays int, now time.Time) (*Summary, error) {
	ok, err := a.store.CategoryExists(userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("metrics: check category: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
	}

	currentFrom := now.AddDate(0, 0, -periodDays)
	previousFrom := now.AddDate(0, 0, -2*periodDays)

	current, err := a.store.ReviewsInRange(userID, currentFrom, now)
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch current period: %w", err)
	}
	previous, err := a.store.ReviewsInRange(userID, previousFrom, currentFrom)
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch previous period: %w", err)
	}

	return a.buildSummary(filterCategory(current, categoryID), filterCategory(previous, categoryID)), nil
}

// Windows returns the fixed trailing windows over the most recent reviews,
// smallest to largest, each carrying its intrinsic reliability label.
func (a *Aggregator) Windows(userID string) ([]WindowStat, error) {
	sizes := a.cfg.WindowSizes
	rows, err := a.store.RecentReviews(userID, sizes[2])
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch recent reviews: %w", err)
	}

	out := make([]WindowStat, 0, len(sizes))
	for i, size := range sizes {
		window := rows
		if len(window) > size {
			window = window[:size]
		}
		s := Summarize(window)
		out = append(out, WindowStat{
			Size:               size,
			Reliability:        windowReliability[i],
			ReviewCount:        s.ReviewCount,
			ObservedRecallRate: s.ObservedRecallRate,
			AvgPredictedRecall: s.AvgPredictedRecall,
			AvgBrierScore:      s.AvgBrierScore,
		})
	}
	return out, nil
}

// SessionWindow aggregates the reviews of one session. Unlike the fixed
// windows, its reliability is banded from the actual review count.
func (a *Aggregator) SessionWindow(userID, sessionID string) (*WindowStat, error) {
	rows, err := a.store.ReviewsForSession(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("metrics: fetch session reviews: %w", err)
	}
	s := Summarize(rows)
	return &WindowStat{
		Size:               len(rows),
		Reliability:        a.periodReliability(len(rows)),
		ReviewCount:        s.ReviewCount,
		ObservedRecallRate: s.ObservedRecallRate,
		AvgPredictedRecall: s.AvgPredictedRecall,
		AvgBrierScore:      s.AvgBrierScore,
	}, nil
}

func (a *Aggregator) buildSummary(current, previous []Review) *Summary {
	cur := Summarize(current)
	cur.Reliability = a.periodReliability(cur.ReviewCount)
	prev := Summarize(previous)
	prev.Reliability = a.periodReliability(prev.ReviewCount)

	return &Summary{
		Current:  cur,
		Previous: prev,
		Deltas: Deltas{
			ReviewCount:        cur.ReviewCount - prev.ReviewCount,
			PassCount:          cur.PassCount - prev.PassCount,
			FailCount:          cur.FailCount - prev.FailCount,
			ObservedRecallRate: cur.ObservedRecallRate - prev.ObservedRecallRate,
			AvgPredictedRecall: cur.AvgPredictedRecall - prev.AvgPredictedRecall,
			AvgBrierScore:      cur.AvgBrierScore - prev.AvgBrierScore,
		},
	}
}

// periodReliability bands a variable-length period from its actual review
// count. The thresholds are configuration, not architecture.
func (a *Aggregator) periodReliability(count int) Reliability {
	switch {
	case count >= a.cfg.ReliabilityHighAt:
		return ReliabilityHigh
	case count >= a.cfg.ReliabilityMediumAt:
		return ReliabilityMedium
	default:
		return ReliabilityLow
	}
}

func filterCategory(rows []Review, categoryID string) []Review {
	out := rows[:0:0]
	for _, r := range rows {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	return out
}
