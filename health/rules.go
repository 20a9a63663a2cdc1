// Package health evaluates a fixed catalog of alert rules against the
// latest dashboard snapshot. Evaluation is stateless and deterministic:
// identical snapshots produce identical alerts in identical order.
package health

// Severity ranks a triggered alert. The zero value means no alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Snapshot is the read-only input to rule evaluation. It is assembled by
// the caller from the aggregator, the auditor, and the auth subsystem's
// refresh statistics; the rules never fetch anything themselves.
type Snapshot struct {
	// Auth token refresh statistics.
	RefreshFailureCount int `json:"refresh_failure_count"`
	RefreshAttemptCount int `json:"refresh_attempt_count"`
	ReuseDetectedCount  int `json:"reuse_detected_count"`

	// Event-log consistency.
	MismatchRate float64 `json:"mismatch_rate"`

	// Review latency.
	ReviewDurationP90Ms float64 `json:"review_duration_p90_ms"`

	// Hours since the derived aggregates were last refreshed.
	// Negative means never refreshed and is treated as stale.
	MetricsAgeHours float64 `json:"metrics_age_hours"`
}

// RefreshFailureRate is the auth refresh failure ratio, 0 when no attempts
// were made.
func (s Snapshot) RefreshFailureRate() float64 {
	if s.RefreshAttemptCount == 0 {
		return 0
	}
	return float64(s.RefreshFailureCount) / float64(s.RefreshAttemptCount)
}

// Alert is one evaluated rule.
type Alert struct {
	ID        string   `json:"id"`
	Severity  Severity `json:"severity"`
	Triggered bool     `json:"triggered"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
}

// Result ranks the evaluated alerts. HighestSeverity is critical if any
// critical rule triggered, warning if only warnings triggered, and empty
// when nothing triggered.
type Result struct {
	Alerts          []Alert  `json:"alerts"`
	HighestSeverity Severity `json:"highest_severity,omitempty"`
}

// minRefreshSamples suppresses the refresh-failure ratio rules below this
// attempt count; sparse data would otherwise trip false alarms.
const minRefreshSamples = 20

// rule maps one aggregate metric to a threshold and severity. eval returns
// the observed value and whether the rule fires.
type rule struct {
	id        string
	severity  Severity
	threshold float64
	eval      func(s Snapshot, threshold float64) (value float64, triggered bool)
}

// catalog is the fixed rule set. Order is part of the contract: alerts come
// back in this order on every run.
var catalog = []rule{
	{
		id:        "auth_refresh_failure_rate",
		severity:  SeverityWarning,
		threshold: 0.15,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			rate := s.RefreshFailureRate()
			if s.RefreshAttemptCount < minRefreshSamples {
				return rate, false
			}
			return rate, rate >= threshold
		},
	},
	{
		id:        "auth_refresh_failure_rate_high",
		severity:  SeverityCritical,
		threshold: 0.5,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			rate := s.RefreshFailureRate()
			if s.RefreshAttemptCount < minRefreshSamples {
				return rate, false
			}
			return rate, rate >= threshold
		},
	},
	{
		id:        "auth_token_reuse",
		severity:  SeverityCritical,
		threshold: 0,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			return float64(s.ReuseDetectedCount), float64(s.ReuseDetectedCount) > threshold
		},
	},
	{
		id:        "event_log_mismatch_rate",
		severity:  SeverityWarning,
		threshold: 0.05,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			return s.MismatchRate, s.MismatchRate >= threshold
		},
	},
	{
		id:        "review_latency_p90",
		severity:  SeverityWarning,
		threshold: 30000,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			return s.ReviewDurationP90Ms, s.ReviewDurationP90Ms >= threshold
		},
	},
	{
		id:        "metrics_staleness",
		severity:  SeverityWarning,
		threshold: 48,
		eval: func(s Snapshot, threshold float64) (float64, bool) {
			if s.MetricsAgeHours < 0 {
				return s.MetricsAgeHours, true
			}
			return s.MetricsAgeHours, s.MetricsAgeHours >= threshold
		},
	},
}

// Evaluate runs every rule in the catalog against the snapshot.
func Evaluate(s Snapshot) Result {
	result := Result{Alerts: make([]Alert, 0, len(catalog))}

	for _, r := range catalog {
		value, triggered := r.eval(s, r.threshold)
		result.Alerts = append(result.Alerts, Alert{
			ID:        r.id,
			Severity:  r.severity,
			Triggered: triggered,
			Value:     value,
			Threshold: r.threshold,
		})
		if !triggered {
			continue
		}
		if r.severity == SeverityCritical {
			result.HighestSeverity = SeverityCritical
		} else if result.HighestSeverity == "" {
			result.HighestSeverity = SeverityWarning
		}
	}
	return result
}

// RuleIDs returns the catalog's rule ids in evaluation order.
func RuleIDs() []string {
	ids := make([]string, len(catalog))
	for i, r := range catalog {
		ids[i] = r.id
	}
	return ids
}
