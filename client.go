package cadence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cadencehq/cadence/audit"
	"github.com/cadencehq/cadence/gate"
	"github.com/cadencehq/cadence/health"
	"github.com/cadencehq/cadence/metrics"
	"github.com/oklog/ulid/v2"
)

// Client is the main interface for submitting reviews and reading the
// derived statistics.
type Client struct {
	store  *Store
	params *Params
	gate   *gate.Cache
	agg    *metrics.Aggregator
	debug  *DebugLogger
	config Config

	mu      sync.Mutex
	session *Session
}

// Option customizes client construction.
type Option func(*Client)

// WithFlagProvider wires a feature-flag provider behind the client's gate
// cache. Without one, every flag reads as disabled and the default
// scheduling policy applies.
func WithFlagProvider(p gate.Provider) Option {
	return func(c *Client) {
		c.gate = gate.NewCache(p, 0, 0)
	}
}

// New creates a new cadence client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params, err := LoadWeights(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:   store,
		params:  params,
		gate:    gate.NewCache(gate.Static{}, 0, 0),
		debug:   debug,
		config:  cfg,
		session: NewSession(),
	}
	c.agg = metrics.NewAggregator(store, metrics.Config{
		ReliabilityMediumAt: cfg.ReliabilityMediumAt,
		ReliabilityHighAt:   cfg.ReliabilityHighAt,
		DayStartHour:        cfg.DayStartHour,
	})

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SubmitParams carries one rating submission.
type SubmitParams struct {
	UserID       string
	CardID       string
	Rating       Rating
	CategoryID   string
	ReviewTimeMs int

	// At is the review time. Zero means now.
	At time.Time
}

// SubmitReview applies one rating to a card: it loads the prior memory
// state (absent for a brand-new card), runs the engine transition under the
// gate-selected retention policy, and atomically persists the new state,
// the review-log row, and the rated journey event.
func (c *Client) SubmitReview(ctx context.Context, params SubmitParams) (*ReviewResult, error) {
	if params.UserID == "" {
		return nil, &ValidationError{Field: "UserID", Message: "required"}
	}
	if params.CardID == "" {
		return nil, &ValidationError{Field: "CardID", Message: "required"}
	}

	now := params.At
	if now.IsZero() {
		now = time.Now().UTC()
	}

	prior, err := c.store.GetMemoryState(params.UserID, params.CardID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	retention := c.config.TargetRetention
	if c.gate.Enabled(ctx, params.UserID, c.config.AdaptiveRetentionFlag) {
		retention = c.config.AdaptiveTargetRetention
	}

	result, err := c.params.ApplyReview(prior, params.Rating, now, retention, c.config.SameDayCutoffHours)
	if err != nil {
		c.debug.LogError("submit review", err)
		return nil, err
	}

	if result.NextIntervalDays > c.config.MaxIntervalDays {
		result.NextIntervalDays = c.config.MaxIntervalDays
		result.NewState.NextReviewAt = now.Add(daysToDuration(c.config.MaxIntervalDays))
	}

	result.NewState.UserID = params.UserID
	result.NewState.CardID = params.CardID

	outcome := c.buildOutcome(prior, params, result, now)
	session := c.currentSession()
	seq, key := session.Next()
	event := JourneyEvent{
		ID:             ulid.Make().String(),
		UserID:         params.UserID,
		SessionID:      session.ID(),
		Type:           EventCardRated,
		ReviewID:       outcome.ID,
		IdempotencyKey: key,
		Seq:            seq,
		OccurredAt:     now,
	}

	if err := c.store.SaveReview(&result.NewState, outcome, event); err != nil {
		c.debug.LogError("save review", err)
		return nil, err
	}

	c.debug.LogReview(params.UserID, params.CardID, params.Rating, result)
	return result, nil
}

// buildOutcome assembles the immutable review-log row. The before fields
// describe the state the review happened in, not the state it produced.
func (c *Client) buildOutcome(prior *MemoryState, params SubmitParams, result *ReviewResult, now time.Time) ReviewOutcome {
	outcome := ReviewOutcome{
		ID:                   ulid.Make().String(),
		UserID:               params.UserID,
		CardID:               params.CardID,
		SessionID:            c.currentSession().ID(),
		CategoryID:           params.CategoryID,
		Rating:               params.Rating,
		ReviewTimeMs:         params.ReviewTimeMs,
		RetrievabilityBefore: result.RetrievabilityBefore,
		ReviewState:          StateLearning,
		CreatedAt:            now,
	}

	if prior != nil && prior.LastReviewAt != nil {
		outcome.ElapsedDays = now.Sub(*prior.LastReviewAt).Hours() / 24.0
		outcome.ScheduledDays = prior.NextReviewAt.Sub(*prior.LastReviewAt).Hours() / 24.0
		outcome.StabilityBefore = prior.Stability
		outcome.DifficultyBefore = prior.Difficulty
		if prior.ReviewState != StateUnset {
			outcome.ReviewState = prior.ReviewState
		}
	}
	return outcome
}

// BeginSession starts a fresh review session for the user, logs its start
// event, and returns the new session id.
func (c *Client) BeginSession(userID string) (string, error) {
	c.mu.Lock()
	c.session = NewSession()
	session := c.session
	c.mu.Unlock()

	seq, key := session.Next()
	err := c.store.AppendJourneyEvent(JourneyEvent{
		ID:             ulid.Make().String(),
		UserID:         userID,
		SessionID:      session.ID(),
		Type:           EventSessionStart,
		IdempotencyKey: key,
		Seq:            seq,
		OccurredAt:     time.Now().UTC(),
	})
	return session.ID(), err
}

// EndSession logs the end event of the current session.
func (c *Client) EndSession(userID string) error {
	session := c.currentSession()
	seq, key := session.Next()
	return c.store.AppendJourneyEvent(JourneyEvent{
		ID:             ulid.Make().String(),
		UserID:         userID,
		SessionID:      session.ID(),
		Type:           EventSessionEnd,
		IdempotencyKey: key,
		Seq:            seq,
		OccurredAt:     time.Now().UTC(),
	})
}

// CardShown logs that a card was presented to the user without a rating
// yet.
func (c *Client) CardShown(userID string) error {
	session := c.currentSession()
	seq, key := session.Next()
	return c.store.AppendJourneyEvent(JourneyEvent{
		ID:             ulid.Make().String(),
		UserID:         userID,
		SessionID:      session.ID(),
		Type:           EventCardShown,
		IdempotencyKey: key,
		Seq:            seq,
		OccurredAt:     time.Now().UTC(),
	})
}

// SessionID returns the current session identifier.
func (c *Client) SessionID() string {
	return c.currentSession().ID()
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// GetMemoryState returns the memory state for one card.
func (c *Client) GetMemoryState(userID, cardID string) (*MemoryState, error) {
	return c.store.GetMemoryState(userID, cardID)
}

// Due returns up to limit cards due for review, soonest first.
func (c *Client) Due(userID string, limit int) ([]MemoryState, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.store.DueMemoryStates(userID, time.Now().UTC(), limit)
}

// RefreshMetrics recomputes the derived daily and session aggregates over
// the configured backfill window and stamps the refresh time.
func (c *Client) RefreshMetrics(userID string) error {
	now := time.Now().UTC()
	if err := c.agg.Refresh(userID, c.config.BackfillDays, now); err != nil {
		c.debug.LogError("refresh metrics", err)
		return err
	}
	return c.store.SetLastRefresh(now)
}

// Summary compares the trailing periodDays against the preceding period of
// equal length.
func (c *Client) Summary(userID string, periodDays int) (*metrics.Summary, error) {
	return c.agg.Summary(userID, periodDays, time.Now().UTC())
}

// CategorySummary is Summary restricted to one category.
func (c *Client) CategorySummary(userID, categoryID string, periodDays int) (*metrics.Summary, error) {
	return c.agg.CategorySummary(userID, categoryID, periodDays, time.Now().UTC())
}

// Windows returns the fixed trailing calibration windows.
func (c *Client) Windows(userID string) ([]metrics.WindowStat, error) {
	return c.agg.Windows(userID)
}

// SessionWindow aggregates the reviews of one session.
func (c *Client) SessionWindow(userID, sessionID string) (*metrics.WindowStat, error) {
	return c.agg.SessionWindow(userID, sessionID)
}

// CreateCategory registers a category and returns its id.
func (c *Client) CreateCategory(userID, name string) (string, error) {
	return c.store.CreateCategory(userID, name)
}

// Audit cross-checks the journey-event log against the review log over the
// trailing windowDays and classifies the drift.
func (c *Client) Audit(userID string, windowDays, sampleLimit int) (*audit.Report, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -windowDays)
	to := now.Add(time.Second)

	outcomes, err := c.store.ReviewOutcomes(userID, from, to)
	if err != nil {
		return nil, err
	}
	events, err := c.store.JourneyEvents(userID, from, to)
	if err != nil {
		return nil, err
	}

	reviews := make([]audit.Review, 0, len(outcomes))
	for _, o := range outcomes {
		reviews = append(reviews, audit.Review{
			ID:        o.ID,
			SessionID: o.SessionID,
			CreatedAt: o.CreatedAt,
		})
	}
	auditEvents := make([]audit.Event, 0, len(events))
	for _, e := range events {
		auditEvents = append(auditEvents, audit.Event{
			ID:         e.ID,
			Type:       string(e.Type),
			ReviewID:   e.ReviewID,
			SessionID:  e.SessionID,
			Seq:        e.Seq,
			OccurredAt: e.OccurredAt,
		})
	}

	report := audit.Audit(reviews, auditEvents, sampleLimit)
	return &report, nil
}

// AuthStats carries the auth subsystem's refresh statistics into health
// evaluation. The engine does not own auth; callers supply these numbers.
type AuthStats struct {
	RefreshFailureCount int `json:"refresh_failure_count"`
	RefreshAttemptCount int `json:"refresh_attempt_count"`
	ReuseDetectedCount  int `json:"reuse_detected_count"`
}

// Health assembles the latest dashboard snapshot and evaluates the alert
// rule catalog against it.
func (c *Client) Health(userID string, auth AuthStats) (*health.Result, error) {
	report, err := c.Audit(userID, c.config.BackfillDays, 0)
	if err != nil {
		return nil, err
	}

	recent, err := c.store.RecentReviews(userID, 100)
	if err != nil {
		return nil, err
	}

	lastRefresh, err := c.store.LastRefresh()
	if err != nil {
		return nil, err
	}
	ageHours := -1.0
	if !lastRefresh.IsZero() {
		ageHours = time.Since(lastRefresh).Hours()
	}

	result := health.Evaluate(health.Snapshot{
		RefreshFailureCount: auth.RefreshFailureCount,
		RefreshAttemptCount: auth.RefreshAttemptCount,
		ReuseDetectedCount:  auth.ReuseDetectedCount,
		MismatchRate:        report.MismatchRate,
		ReviewDurationP90Ms: metrics.DurationPercentile(recent, 0.9),
		MetricsAgeHours:     ageHours,
	})
	return &result, nil
}

// ExportReviewLog streams the user's review log in [from, to) as JSONL.
func (c *Client) ExportReviewLog(ctx context.Context, w io.Writer, userID string, from, to time.Time) error {
	return c.store.ExportReviewLog(ctx, w, c.config.SourceID, userID, from, to)
}

// ExportDailyMetrics streams the user's derived daily aggregates for dates
// in [from, to], both YYYY-MM-DD, as JSONL.
func (c *Client) ExportDailyMetrics(ctx context.Context, w io.Writer, userID, from, to string) error {
	return c.store.ExportDailyMetrics(ctx, w, c.config.SourceID, userID, from, to)
}

// ExportSQLite writes a self-contained sqlite snapshot of the whole store,
// all users included, to destPath. The snapshot opens with NewStore.
func (c *Client) ExportSQLite(ctx context.Context, destPath string) error {
	return c.store.ExportSQLite(ctx, destPath)
}

// Stats returns store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// Close closes the client.
func (c *Client) Close() error {
	if err := c.debug.Close(); err != nil {
		return err
	}
	return c.store.Close()
}
