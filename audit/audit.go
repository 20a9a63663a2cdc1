// Package audit cross-checks the append-only journey-event log against the
// canonical review log and classifies the drift between them. It is a
// read-only observer: it never writes, retries, or blocks on I/O, and it
// tolerates observing a slightly stale snapshot.
package audit

import "time"

// Fixed mismatch-rate thresholds for the three-tier health classification.
const (
	MinorThreshold = 0.01
	MajorThreshold = 0.05
)

// Level is the three-tier consistency health classification.
type Level string

const (
	LevelHealthy        Level = "healthy"
	LevelMinorDrift     Level = "minor_drift"
	LevelNeedsAttention Level = "needs_attention"
)

// EventTypeRated marks the journey events that must correlate one-to-one
// with review-log rows.
const EventTypeRated = "card_rated"

// Review is the auditor's view of one review-log row.
type Review struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is the auditor's view of one journey-event row.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ReviewID   string    `json:"review_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Seq        int       `json:"seq"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Report is the derived consistency snapshot. It is recomputed per request
// and never persisted.
type Report struct {
	ReviewLogCount     int     `json:"review_log_count"`
	JourneyEventCount  int     `json:"journey_event_count"`
	MissingCount       int     `json:"missing_count"`
	DuplicateCount     int     `json:"duplicate_count"`
	OrderingIssueCount int     `json:"ordering_issue_count"`
	MismatchRate       float64 `json:"mismatch_rate"`
	HealthLevel        Level   `json:"health_level"`

	// Bounded samples of offending ids for debugging, capped at the
	// sampleLimit the caller passed.
	MissingSamples    []string `json:"missing_samples,omitempty"`
	DuplicateSamples  []string `json:"duplicate_samples,omitempty"`
	OutOfOrderSamples []string `json:"out_of_order_samples,omitempty"`
}

// Audit correlates reviews with their rated journey events and reports the
// drift. missing counts reviews with no matching rated event, duplicate
// counts reviews with more than one, and ordering counts events whose
// timestamp precedes their review or whose sequence numbers run backwards
// within a session. Zero reviews means zero mismatch: absence of data is no
// basis for concern.
func Audit(reviews []Review, events []Event, sampleLimit int) Report {
	report := Report{
		ReviewLogCount:    len(reviews),
		JourneyEventCount: len(events),
	}
	if sampleLimit < 0 {
		sampleLimit = 0
	}

	// Index rated events by the review they claim to correspond to.
	rated := make(map[string][]Event)
	for _, e := range events {
		if e.Type != EventTypeRated || e.ReviewID == "" {
			continue
		}
		rated[e.ReviewID] = append(rated[e.ReviewID], e)
	}

	for _, r := range reviews {
		matches := rated[r.ID]
		switch {
		case len(matches) == 0:
			report.MissingCount++
			report.MissingSamples = appendSample(report.MissingSamples, r.ID, sampleLimit)
		case len(matches) > 1:
			report.DuplicateCount++
			report.DuplicateSamples = appendSample(report.DuplicateSamples, r.ID, sampleLimit)
		}
		for _, e := range matches {
			if e.OccurredAt.Before(r.CreatedAt) {
				report.OrderingIssueCount++
				report.OutOfOrderSamples = appendSample(report.OutOfOrderSamples, e.ID, sampleLimit)
				break
			}
		}
	}

	report.OrderingIssueCount += countSeqRegressions(events, sampleLimit, &report)

	if report.ReviewLogCount > 0 {
		issues := report.MissingCount + report.DuplicateCount + report.OrderingIssueCount
		report.MismatchRate = float64(issues) / float64(report.ReviewLogCount)
	}
	report.HealthLevel = Classify(report.MismatchRate)
	return report
}

// Classify maps a mismatch rate onto the three-tier health level.
func Classify(mismatchRate float64) Level {
	switch {
	case mismatchRate >= MajorThreshold:
		return LevelNeedsAttention
	case mismatchRate >= MinorThreshold:
		return LevelMinorDrift
	default:
		return LevelHealthy
	}
}

// countSeqRegressions detects non-monotonic sequence numbers within a
// session, in event order.
func countSeqRegressions(events []Event, sampleLimit int, report *Report) int {
	lastSeq := make(map[string]int)
	count := 0
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		if prev, ok := lastSeq[e.SessionID]; ok && e.Seq <= prev {
			count++
			report.OutOfOrderSamples = appendSample(report.OutOfOrderSamples, e.ID, sampleLimit)
			continue
		}
		lastSeq[e.SessionID] = e.Seq
	}
	return count
}

func appendSample(samples []string, id string, limit int) []string {
	if len(samples) >= limit {
		return samples
	}
	return append(samples, id)
}
