package cadence

import (
	"encoding"
	"fmt"
)

// ReviewState is the learning stage of a card. The metrics aggregator uses
// it to partition review counts into learning and graduated buckets; an
// unset state counts as learning.
type ReviewState int

const (
	StateUnset      ReviewState = iota // Not recorded; treated as learning.
	StateLearning                      // New card, in initial learning.
	StateReview                        // Graduated into the long-term review cycle.
	StateRelearning                    // Forgotten, relearning.
)

var (
	reviewStateNames = [...]string{
		StateUnset:      "",
		StateLearning:   "learning",
		StateReview:     "review",
		StateRelearning: "relearning",
	}

	reviewStateByName = map[string]ReviewState{
		"":           StateUnset,
		"learning":   StateLearning,
		"review":     StateReview,
		"relearning": StateRelearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = ReviewState(0)
	_ encoding.TextMarshaler   = ReviewState(0)
	_ encoding.TextUnmarshaler = (*ReviewState)(nil)
)

// IsValid reports whether s is a known review state (including unset).
func (s ReviewState) IsValid() bool {
	return s >= StateUnset && s <= StateRelearning
}

// Learning reports whether reviews in this state count toward the learning
// bucket. Unset states default to learning.
func (s ReviewState) Learning() bool {
	return s != StateReview
}

// String returns the lowercase state name, or "" for StateUnset.
func (s ReviewState) String() string {
	if s.IsValid() {
		return reviewStateNames[s]
	}
	return fmt.Sprintf("ReviewState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ReviewState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid review state: %d", int(s))
	}
	return []byte(reviewStateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names map to
// StateUnset.
func (s *ReviewState) UnmarshalText(text []byte) error {
	*s = ParseReviewState(string(text))
	return nil
}

// ParseReviewState converts a stored state name back to a ReviewState.
// Unknown names map to StateUnset.
func ParseReviewState(name string) ReviewState {
	if v, ok := reviewStateByName[name]; ok {
		return v
	}
	return StateUnset
}
