package metrics

import (
	"math"
	"sort"
	"time"
)

// Pure rollup functions. Everything here is deterministic over its inputs;
// the Aggregator owns fetching and upserting.

// BrierScore is the mean squared error between predicted recall and the
// binary pass/fail outcome. Lower is better calibrated. Returns 0 for an
// empty slice.
func BrierScore(rows []Review) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		outcome := 0.0
		if r.Passed() {
			outcome = 1.0
		}
		diff := r.PredictedRecall - outcome
		sum += diff * diff
	}
	return sum / float64(len(rows))
}

// Summarize rolls rows into a PeriodSummary. The Reliability field is left
// unset; banding depends on aggregator configuration.
func Summarize(rows []Review) PeriodSummary {
	s := PeriodSummary{ReviewCount: len(rows)}
	if len(rows) == 0 {
		return s
	}

	var predicted float64
	for _, r := range rows {
		if r.Passed() {
			s.PassCount++
		} else {
			s.FailCount++
		}
		if r.Learning() {
			s.LearningCount++
		} else {
			s.GraduatedCount++
		}
		predicted += r.PredictedRecall
	}

	n := float64(len(rows))
	s.ObservedRecallRate = float64(s.PassCount) / n
	s.AvgPredictedRecall = predicted / n
	s.AvgBrierScore = BrierScore(rows)
	return s
}

// DurationPercentile returns the pth percentile (0 < p <= 1) of review
// durations in milliseconds, using the nearest-rank method. Returns 0 for
// an empty slice.
func DurationPercentile(rows []Review, p float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	durations := make([]int, len(rows))
	for i, r := range rows {
		durations[i] = r.ReviewTimeMs
	}
	sort.Ints(durations)

	rank := int(math.Ceil(p * float64(len(durations))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(durations) {
		rank = len(durations)
	}
	return float64(durations[rank-1])
}

// DayKey buckets a timestamp into a calendar day, shifted by the configured
// day-start hour: a review at 02:00 with dayStartHour 4 belongs to the
// previous day.
func DayKey(t time.Time, dayStartHour int) string {
	return t.UTC().Add(-time.Duration(dayStartHour) * time.Hour).Format("2006-01-02")
}

// DailyRollup groups rows into per-day aggregates, sorted by date. Safe to
// recompute; the result replaces, never accumulates.
func DailyRollup(userID string, rows []Review, dayStartHour int) []DailyMetric {
	byDay := make(map[string][]Review)
	for _, r := range rows {
		key := DayKey(r.CreatedAt, dayStartHour)
		byDay[key] = append(byDay[key], r)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]DailyMetric, 0, len(days))
	for _, day := range days {
		group := byDay[day]
		s := Summarize(group)
		out = append(out, DailyMetric{
			UserID:             userID,
			Date:               day,
			ReviewCount:        s.ReviewCount,
			PassCount:          s.PassCount,
			FailCount:          s.FailCount,
			LearningCount:      s.LearningCount,
			GraduatedCount:     s.GraduatedCount,
			ObservedRecallRate: s.ObservedRecallRate,
			AvgPredictedRecall: s.AvgPredictedRecall,
			BrierScore:         s.AvgBrierScore,
			DurationP50Ms:      DurationPercentile(group, 0.5),
			DurationP90Ms:      DurationPercentile(group, 0.9),
		})
	}
	return out
}

// SessionRollup groups rows into per-session aggregates, sorted by session
// start. Rows without a session id are skipped.
func SessionRollup(userID string, rows []Review) []SessionMetric {
	bySession := make(map[string][]Review)
	for _, r := range rows {
		if r.SessionID == "" {
			continue
		}
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	out := make([]SessionMetric, 0, len(bySession))
	for sessionID, group := range bySession {
		s := Summarize(group)
		m := SessionMetric{
			UserID:             userID,
			SessionID:          sessionID,
			StartedAt:          group[0].CreatedAt,
			EndedAt:            group[0].CreatedAt,
			ReviewCount:        s.ReviewCount,
			PassCount:          s.PassCount,
			FailCount:          s.FailCount,
			LearningCount:      s.LearningCount,
			GraduatedCount:     s.GraduatedCount,
			ObservedRecallRate: s.ObservedRecallRate,
			AvgPredictedRecall: s.AvgPredictedRecall,
			BrierScore:         s.AvgBrierScore,
			DurationP50Ms:      DurationPercentile(group, 0.5),
			DurationP90Ms:      DurationPercentile(group, 0.9),
		}
		for _, r := range group {
			if r.CreatedAt.Before(m.StartedAt) {
				m.StartedAt = r.CreatedAt
			}
			if r.CreatedAt.After(m.EndedAt) {
				m.EndedAt = r.CreatedAt
			}
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
