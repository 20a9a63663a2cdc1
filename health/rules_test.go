package health

import "testing"

func alertByID(t *testing.T, result Result, id string) Alert {
	t.Helper()
	for _, a := range result.Alerts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("no alert with id %q", id)
	return Alert{}
}

func TestEvaluate_QuietSnapshot(t *testing.T) {
	result := Evaluate(Snapshot{
		RefreshAttemptCount: 100,
		RefreshFailureCount: 2,
		MismatchRate:        0.001,
		ReviewDurationP90Ms: 4000,
		MetricsAgeHours:     1,
	})

	if result.HighestSeverity != "" {
		t.Errorf("HighestSeverity = %q, want empty", result.HighestSeverity)
	}
	for _, a := range result.Alerts {
		if a.Triggered {
			t.Errorf("alert %s triggered on quiet snapshot", a.ID)
		}
	}
	if len(result.Alerts) != len(RuleIDs()) {
		t.Errorf("got %d alerts, want %d", len(result.Alerts), len(RuleIDs()))
	}
}

func TestEvaluate_RefreshFailureWarningOnly(t *testing.T) {
	// 7 failures over 40 attempts is 0.175: past the warning threshold,
	// below the critical one.
	result := Evaluate(Snapshot{
		RefreshAttemptCount: 40,
		RefreshFailureCount: 7,
		MetricsAgeHours:     1,
	})

	warn := alertByID(t, result, "auth_refresh_failure_rate")
	if !warn.Triggered {
		t.Error("warning rule did not trigger at 0.175")
	}
	if warn.Value != 0.175 {
		t.Errorf("warning value = %v, want 0.175", warn.Value)
	}
	crit := alertByID(t, result, "auth_refresh_failure_rate_high")
	if crit.Triggered {
		t.Error("critical rule triggered below its threshold")
	}
	if result.HighestSeverity != SeverityWarning {
		t.Errorf("HighestSeverity = %q, want warning", result.HighestSeverity)
	}
}

func TestEvaluate_SparseRefreshSamplesSuppressed(t *testing.T) {
	// 10 of 10 failures would be a 100% rate, but the sample is too small.
	result := Evaluate(Snapshot{
		RefreshAttemptCount: 10,
		RefreshFailureCount: 10,
		MetricsAgeHours:     1,
	})

	if alertByID(t, result, "auth_refresh_failure_rate").Triggered {
		t.Error("warning rule triggered below the minimum sample count")
	}
	if alertByID(t, result, "auth_refresh_failure_rate_high").Triggered {
		t.Error("critical rule triggered below the minimum sample count")
	}
}

func TestEvaluate_TokenReuseIsCritical(t *testing.T) {
	result := Evaluate(Snapshot{ReuseDetectedCount: 1, MetricsAgeHours: 1})

	reuse := alertByID(t, result, "auth_token_reuse")
	if !reuse.Triggered {
		t.Error("token reuse did not trigger")
	}
	if result.HighestSeverity != SeverityCritical {
		t.Errorf("HighestSeverity = %q, want critical", result.HighestSeverity)
	}
}

func TestEvaluate_CriticalOutranksWarning(t *testing.T) {
	// Both a warning (latency) and a critical (reuse) fire.
	result := Evaluate(Snapshot{
		ReuseDetectedCount:  2,
		ReviewDurationP90Ms: 60000,
		MetricsAgeHours:     1,
	})
	if result.HighestSeverity != SeverityCritical {
		t.Errorf("HighestSeverity = %q, want critical", result.HighestSeverity)
	}
}

func TestEvaluate_NeverRefreshedIsStale(t *testing.T) {
	result := Evaluate(Snapshot{MetricsAgeHours: -1})

	stale := alertByID(t, result, "metrics_staleness")
	if !stale.Triggered {
		t.Error("negative metrics age did not trigger staleness")
	}
	if result.HighestSeverity != SeverityWarning {
		t.Errorf("HighestSeverity = %q, want warning", result.HighestSeverity)
	}
}

func TestEvaluate_MismatchRateBoundary(t *testing.T) {
	result := Evaluate(Snapshot{MismatchRate: 0.05, MetricsAgeHours: 1})
	if !alertByID(t, result, "event_log_mismatch_rate").Triggered {
		t.Error("mismatch rate rule did not trigger at its threshold")
	}

	result = Evaluate(Snapshot{MismatchRate: 0.049, MetricsAgeHours: 1})
	if alertByID(t, result, "event_log_mismatch_rate").Triggered {
		t.Error("mismatch rate rule triggered below its threshold")
	}
}

func TestRefreshFailureRate_ZeroAttempts(t *testing.T) {
	if got := (Snapshot{}).RefreshFailureRate(); got != 0 {
		t.Errorf("RefreshFailureRate with no attempts = %v, want 0", got)
	}
}

func TestRuleIDs_StableOrder(t *testing.T) {
	want := []string{
		"auth_refresh_failure_rate",
		"auth_refresh_failure_rate_high",
		"auth_token_reuse",
		"event_log_mismatch_rate",
		"review_latency_p90",
		"metrics_staleness",
	}
	got := RuleIDs()
	if len(got) != len(want) {
		t.Fatalf("got %d rule ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rule %d = %s, want %s", i, got[i], want[i])
		}
	}

	// Alerts come back in catalog order.
	result := Evaluate(Snapshot{MetricsAgeHours: 1})
	for i, a := range result.Alerts {
		if a.ID != want[i] {
			t.Errorf("alert %d = %s, want %s", i, a.ID, want[i])
		}
	}
}
