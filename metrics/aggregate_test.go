package metrics

import (
	"math"
	"testing"
	"time"
)

func review(rating int, predicted float64) Review {
	return Review{Rating: rating, PredictedRecall: predicted}
}

func TestBrierScore(t *testing.T) {
	if got := BrierScore(nil); got != 0 {
		t.Errorf("BrierScore(nil) = %v, want 0", got)
	}

	// Perfect calibration at certainty scores zero.
	perfect := []Review{review(3, 1.0), review(1, 0.0)}
	if got := BrierScore(perfect); got != 0 {
		t.Errorf("BrierScore(perfect) = %v, want 0", got)
	}

	// One pass predicted at 0.8 and one fail predicted at 0.8:
	// ((0.8-1)^2 + (0.8-0)^2) / 2 = (0.04 + 0.64) / 2 = 0.34
	mixed := []Review{review(3, 0.8), review(1, 0.8)}
	if got := BrierScore(mixed); math.Abs(got-0.34) > 1e-12 {
		t.Errorf("BrierScore(mixed) = %v, want 0.34", got)
	}
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	if empty.ReviewCount != 0 || empty.ObservedRecallRate != 0 || empty.AvgBrierScore != 0 {
		t.Errorf("Summarize(nil) = %+v, want all zero", empty)
	}

	rows := []Review{
		{Rating: 1, PredictedRecall: 0.9, ReviewState: "learning"},
		{Rating: 2, PredictedRecall: 0.8, ReviewState: "review"},
		{Rating: 3, PredictedRecall: 0.7, ReviewState: "review"},
		{Rating: 4, PredictedRecall: 0.6},
	}
	s := Summarize(rows)
	if s.ReviewCount != 4 || s.PassCount != 3 || s.FailCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", s.ReviewCount, s.PassCount, s.FailCount)
	}
	if s.LearningCount != 2 || s.GraduatedCount != 2 {
		t.Errorf("buckets = %d learning / %d graduated, want 2/2", s.LearningCount, s.GraduatedCount)
	}
	if s.ObservedRecallRate != 0.75 {
		t.Errorf("ObservedRecallRate = %v, want 0.75", s.ObservedRecallRate)
	}
	if math.Abs(s.AvgPredictedRecall-0.75) > 1e-12 {
		t.Errorf("AvgPredictedRecall = %v, want 0.75", s.AvgPredictedRecall)
	}
	if s.Reliability != "" {
		t.Errorf("Reliability = %q, want unset", s.Reliability)
	}
}

func TestDurationPercentile(t *testing.T) {
	if got := DurationPercentile(nil, 0.5); got != 0 {
		t.Errorf("DurationPercentile(nil) = %v, want 0", got)
	}

	rows := []Review{
		{ReviewTimeMs: 5000}, {ReviewTimeMs: 1000}, {ReviewTimeMs: 3000},
		{ReviewTimeMs: 2000}, {ReviewTimeMs: 4000},
	}
	cases := []struct {
		p    float64
		want float64
	}{
		{0.5, 3000},  // ceil(0.5*5)=3rd of sorted
		{0.9, 5000},  // ceil(0.9*5)=5th
		{0.2, 1000},  // ceil(0.2*5)=1st
		{1.0, 5000},
	}
	for _, tc := range cases {
		if got := DurationPercentile(rows, tc.p); got != tc.want {
			t.Errorf("DurationPercentile(p=%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestDayKey_DayStartShift(t *testing.T) {
	// 02:00 with a 4am day boundary belongs to the previous day.
	at := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	if got := DayKey(at, 4); got != "2026-03-09" {
		t.Errorf("DayKey(02:00, start=4) = %q, want 2026-03-09", got)
	}
	if got := DayKey(at, 0); got != "2026-03-10" {
		t.Errorf("DayKey(02:00, start=0) = %q, want 2026-03-10", got)
	}
	// 05:00 is past the boundary.
	at = time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	if got := DayKey(at, 4); got != "2026-03-10" {
		t.Errorf("DayKey(05:00, start=4) = %q, want 2026-03-10", got)
	}
}

func TestDailyRollup(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	rows := []Review{
		{Rating: 3, PredictedRecall: 0.9, ReviewTimeMs: 2000, CreatedAt: day1},
		{Rating: 1, PredictedRecall: 0.9, ReviewTimeMs: 8000, CreatedAt: day1},
		{Rating: 4, PredictedRecall: 0.95, ReviewTimeMs: 1000, CreatedAt: day2},
	}

	out := DailyRollup("alice", rows, 0)
	if len(out) != 2 {
		t.Fatalf("got %d days, want 2", len(out))
	}
	if out[0].Date != "2026-03-10" || out[1].Date != "2026-03-11" {
		t.Errorf("dates = %s, %s, want sorted ascending", out[0].Date, out[1].Date)
	}
	if out[0].ReviewCount != 2 || out[0].PassCount != 1 || out[0].FailCount != 1 {
		t.Errorf("day 1 counts = %+v, want 2/1/1", out[0])
	}
	if out[0].UserID != "alice" {
		t.Errorf("UserID = %q, want alice", out[0].UserID)
	}
	if out[0].DurationP90Ms != 8000 {
		t.Errorf("day 1 p90 = %v, want 8000", out[0].DurationP90Ms)
	}
	if out[1].ObservedRecallRate != 1.0 {
		t.Errorf("day 2 recall = %v, want 1.0", out[1].ObservedRecallRate)
	}
}

func TestSessionRollup(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	rows := []Review{
		{Rating: 3, SessionID: "s2", CreatedAt: base.Add(30 * time.Minute)},
		{Rating: 3, SessionID: "s1", CreatedAt: base},
		{Rating: 1, SessionID: "s1", CreatedAt: base.Add(5 * time.Minute)},
		{Rating: 4, CreatedAt: base}, // no session, skipped
	}

	out := SessionRollup("alice", rows)
	if len(out) != 2 {
		t.Fatalf("got %d sessions, want 2", len(out))
	}
	if out[0].SessionID != "s1" || out[1].SessionID != "s2" {
		t.Errorf("order = %s, %s, want s1 first by start time", out[0].SessionID, out[1].SessionID)
	}
	if out[0].ReviewCount != 2 {
		t.Errorf("s1 ReviewCount = %d, want 2", out[0].ReviewCount)
	}
	if !out[0].StartedAt.Equal(base) || !out[0].EndedAt.Equal(base.Add(5*time.Minute)) {
		t.Errorf("s1 span = %v..%v, want %v..%v",
			out[0].StartedAt, out[0].EndedAt, base, base.Add(5*time.Minute))
	}
}

func TestReview_PassedAndLearning(t *testing.T) {
	if review(1, 0).Passed() {
		t.Error("Again counted as pass")
	}
	for _, rating := range []int{2, 3, 4} {
		if !review(rating, 0).Passed() {
			t.Errorf("rating %d not counted as pass", rating)
		}
	}
	if (Review{ReviewState: "review"}).Learning() {
		t.Error("graduated review counted as learning")
	}
	if !(Review{}).Learning() {
		t.Error("unset state not counted as learning")
	}
}
