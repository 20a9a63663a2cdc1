package cadence

import "time"

// MemoryState holds the per-(user, card) memory model values. It is created
// on the first rating and updated in place on every subsequent one; cards
// keep their state for as long as they exist.
type MemoryState struct {
	UserID       string      `json:"user_id"`
	CardID       string      `json:"card_id"`
	Stability    float64     `json:"stability"`
	Difficulty   float64     `json:"difficulty"`
	ReviewState  ReviewState `json:"review_state"`
	LastReviewAt *time.Time  `json:"last_review_at,omitempty"` // nil before first review
	NextReviewAt time.Time   `json:"next_review_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ReviewResult is what the engine returns for one rating submission.
type ReviewResult struct {
	NewState             MemoryState `json:"new_state"`
	RetrievabilityBefore float64     `json:"retrievability_before"`
	NextIntervalDays     float64     `json:"next_interval_days"`
}

// ReviewOutcome is one row of the append-only review log: the ground truth
// the aggregator and auditor read. Rows are immutable after insert.
type ReviewOutcome struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"user_id"`
	CardID               string      `json:"card_id"`
	SessionID            string      `json:"session_id,omitempty"`
	CategoryID           string      `json:"category_id,omitempty"`
	Rating               Rating      `json:"rating"`
	ReviewTimeMs         int         `json:"review_time_ms"`
	ElapsedDays          float64     `json:"elapsed_days"`
	ScheduledDays        float64     `json:"scheduled_days"`
	StabilityBefore      float64     `json:"stability_before"`
	DifficultyBefore     float64     `json:"difficulty_before"`
	RetrievabilityBefore float64     `json:"retrievability_before"`
	ReviewState          ReviewState `json:"review_state"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Passed reports whether the review counts as a successful recall.
func (o ReviewOutcome) Passed() bool {
	return o.Rating >= Hard
}

// JourneyEventType classifies session-level journey events.
type JourneyEventType string

const (
	EventCardShown    JourneyEventType = "card_shown"
	EventCardRated    JourneyEventType = "card_rated"
	EventSessionStart JourneyEventType = "session_start"
	EventSessionEnd   JourneyEventType = "session_end"
)

// JourneyEvent is one row of the parallel append-only session log. Only the
// consistency auditor reads it, to detect drift against the review log.
type JourneyEvent struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	SessionID      string           `json:"session_id"`
	Type           JourneyEventType `json:"type"`
	ReviewID       string           `json:"review_id,omitempty"` // set for card_rated events
	IdempotencyKey string           `json:"idempotency_key"`
	Seq            int              `json:"seq"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	MemoryStateCount  int       `json:"memory_state_count"`
	ReviewCount       int       `json:"review_count"`
	JourneyEventCount int       `json:"journey_event_count"`
	LastRefreshAt     time.Time `json:"last_refresh_at"`
	SchemaVersion     string    `json:"schema_version"`
}
