package cadence_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadencehq/cadence"
	"github.com/cadencehq/cadence/gate"
	"github.com/cadencehq/cadence/health"
)

func newTestClient(t *testing.T, opts ...cadence.Option) *cadence.Client {
	t.Helper()
	client, err := cadence.New(cadence.Config{
		DBPath: filepath.Join(t.TempDir(), "cadence.db"),
	}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_SubmitReview_FirstReview(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID:       "alice",
		CardID:       "card-1",
		Rating:       cadence.Good,
		ReviewTimeMs: 3000,
	})
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}

	// A brand-new card has no prior state to predict from.
	if result.RetrievabilityBefore != 0 {
		t.Errorf("RetrievabilityBefore = %v, want 0 for first review", result.RetrievabilityBefore)
	}
	if result.NewState.ReviewState != cadence.StateLearning {
		t.Errorf("ReviewState = %v, want learning", result.NewState.ReviewState)
	}
	if result.NextIntervalDays <= 0 {
		t.Errorf("NextIntervalDays = %v, want positive", result.NextIntervalDays)
	}

	state, err := client.GetMemoryState("alice", "card-1")
	if err != nil {
		t.Fatalf("GetMemoryState failed: %v", err)
	}
	if state.Stability != result.NewState.Stability {
		t.Errorf("persisted stability = %v, want %v", state.Stability, result.NewState.Stability)
	}
	if state.LastReviewAt == nil {
		t.Error("LastReviewAt not set after first review")
	}
}

func TestClient_SubmitReview_Validation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.SubmitReview(ctx, cadence.SubmitParams{CardID: "c", Rating: cadence.Good})
	var verr *cadence.ValidationError
	if !errors.As(err, &verr) || verr.Field != "UserID" {
		t.Errorf("missing user error = %v, want ValidationError on UserID", err)
	}

	_, err = client.SubmitReview(ctx, cadence.SubmitParams{UserID: "u", Rating: cadence.Good})
	if !errors.As(err, &verr) || verr.Field != "CardID" {
		t.Errorf("missing card error = %v, want ValidationError on CardID", err)
	}

	_, err = client.SubmitReview(ctx, cadence.SubmitParams{UserID: "u", CardID: "c", Rating: 9})
	if !errors.Is(err, cadence.ErrInvalidRating) {
		t.Errorf("rating 9 error = %v, want ErrInvalidRating", err)
	}
}

func TestClient_SubmitReview_SecondReviewUsesPrior(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	first := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	r1, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "card-1", Rating: cadence.Good, At: first,
	})
	if err != nil {
		t.Fatalf("first SubmitReview failed: %v", err)
	}

	r2, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "card-1", Rating: cadence.Good,
		At: first.AddDate(0, 0, 3),
	})
	if err != nil {
		t.Fatalf("second SubmitReview failed: %v", err)
	}

	if r2.RetrievabilityBefore <= 0 || r2.RetrievabilityBefore >= 1 {
		t.Errorf("second RetrievabilityBefore = %v, want in (0, 1)", r2.RetrievabilityBefore)
	}
	if r2.NewState.Stability <= r1.NewState.Stability {
		t.Errorf("stability did not grow: %v -> %v", r1.NewState.Stability, r2.NewState.Stability)
	}
	if r2.NewState.ReviewState != cadence.StateReview {
		t.Errorf("ReviewState = %v, want review after a cross-day pass", r2.NewState.ReviewState)
	}
}

func TestClient_AdaptiveRetentionFlagLengthensInterval(t *testing.T) {
	ctx := context.Background()
	control := newTestClient(t)
	adaptive := newTestClient(t, cadence.WithFlagProvider(gate.Static{"adaptive-retention": true}))

	params := cadence.SubmitParams{UserID: "alice", CardID: "card-1", Rating: cadence.Good}
	base, err := control.SubmitReview(ctx, params)
	if err != nil {
		t.Fatalf("control SubmitReview failed: %v", err)
	}
	flagged, err := adaptive.SubmitReview(ctx, params)
	if err != nil {
		t.Fatalf("adaptive SubmitReview failed: %v", err)
	}

	// The adaptive target of 0.85 tolerates more forgetting than the
	// default 0.9, so it schedules further out.
	if flagged.NextIntervalDays <= base.NextIntervalDays {
		t.Errorf("adaptive interval %v not longer than control %v",
			flagged.NextIntervalDays, base.NextIntervalDays)
	}
}

func TestClient_Due(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	past := time.Now().UTC().AddDate(0, 0, -30)

	if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "old-card", Rating: cadence.Good, At: past,
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "fresh-card", Rating: cadence.Good,
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}

	due, err := client.Due("alice", 0)
	if err != nil {
		t.Fatalf("Due failed: %v", err)
	}
	if len(due) != 1 || due[0].CardID != "old-card" {
		t.Fatalf("Due = %+v, want only old-card", due)
	}
}

func TestClient_Sessions(t *testing.T) {
	client := newTestClient(t)

	initial := client.SessionID()
	sessionID, err := client.BeginSession("alice")
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if sessionID == initial {
		t.Error("BeginSession did not rotate the session id")
	}
	if client.SessionID() != sessionID {
		t.Errorf("SessionID() = %q, want %q", client.SessionID(), sessionID)
	}

	if err := client.CardShown("alice"); err != nil {
		t.Fatalf("CardShown failed: %v", err)
	}
	if err := client.EndSession("alice"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.JourneyEventCount != 3 {
		t.Errorf("JourneyEventCount = %d, want 3", stats.JourneyEventCount)
	}
}

func TestClient_AuditAfterSubmissions(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, cardID := range []string{"c1", "c2", "c3"} {
		if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
			UserID: "alice", CardID: cardID, Rating: cadence.Good,
		}); err != nil {
			t.Fatalf("SubmitReview failed: %v", err)
		}
	}

	report, err := client.Audit("alice", 30, 10)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if report.ReviewLogCount != 3 {
		t.Errorf("ReviewLogCount = %d, want 3", report.ReviewLogCount)
	}
	if report.MismatchRate != 0 {
		t.Errorf("MismatchRate = %v, want 0: %+v", report.MismatchRate, report)
	}
	if report.HealthLevel != "healthy" {
		t.Errorf("HealthLevel = %s, want healthy", report.HealthLevel)
	}
}

func TestClient_MetricsRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, cardID := range []string{"c1", "c2", "c3", "c4"} {
		if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
			UserID: "alice", CardID: cardID, Rating: cadence.Good, ReviewTimeMs: 2000,
		}); err != nil {
			t.Fatalf("SubmitReview failed: %v", err)
		}
	}

	if err := client.RefreshMetrics("alice"); err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}

	summary, err := client.Summary("alice", 7)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Current.ReviewCount != 4 || summary.Current.PassCount != 4 {
		t.Errorf("current = %+v, want 4 reviews all passed", summary.Current)
	}

	windows, err := client.Windows("alice")
	if err != nil {
		t.Fatalf("Windows failed: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if windows[0].ReviewCount != 4 {
		t.Errorf("smallest window count = %d, want 4", windows[0].ReviewCount)
	}

	sw, err := client.SessionWindow("alice", client.SessionID())
	if err != nil {
		t.Fatalf("SessionWindow failed: %v", err)
	}
	if sw.ReviewCount != 4 {
		t.Errorf("session window count = %d, want 4", sw.ReviewCount)
	}
}

func TestClient_CategorySummary(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	catID, err := client.CreateCategory("alice", "vocab")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "c1", Rating: cadence.Good, CategoryID: catID,
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "c2", Rating: cadence.Good,
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}

	summary, err := client.CategorySummary("alice", catID, 7)
	if err != nil {
		t.Fatalf("CategorySummary failed: %v", err)
	}
	if summary.Current.ReviewCount != 1 {
		t.Errorf("category review count = %d, want 1", summary.Current.ReviewCount)
	}
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID: "alice", CardID: "c1", Rating: cadence.Good, ReviewTimeMs: 2000,
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if err := client.RefreshMetrics("alice"); err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}

	result, err := client.Health("alice", cadence.AuthStats{
		RefreshAttemptCount: 100,
		RefreshFailureCount: 1,
	})
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if result.HighestSeverity != "" {
		t.Errorf("HighestSeverity = %q, want empty: %+v", result.HighestSeverity, result.Alerts)
	}

	// Token reuse escalates regardless of everything else.
	result, err = client.Health("alice", cadence.AuthStats{ReuseDetectedCount: 1})
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if result.HighestSeverity != health.SeverityCritical {
		t.Errorf("HighestSeverity = %q, want critical", result.HighestSeverity)
	}
}
