package cadence

import (
	"errors"
	"fmt"
)

// Common errors returned by the cadence engine and client.
var (
	// ErrInvalidRating is returned when a rating outside Again..Easy is provided.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidWeights is returned when a weight vector fails bounds validation.
	ErrInvalidWeights = errors.New("weights out of bounds")

	// ErrNonFiniteInput is returned when a numeric input is NaN or infinite.
	ErrNonFiniteInput = errors.New("non-finite numeric input")

	// ErrNonPositiveStability is returned where stability must be strictly positive.
	ErrNonPositiveStability = errors.New("stability must be positive")

	// ErrInvalidDifficulty is returned when difficulty is outside [1, 10].
	ErrInvalidDifficulty = errors.New("difficulty out of range [1, 10]")

	// ErrInvalidRetention is returned when target retention is outside (0, 1).
	ErrInvalidRetention = errors.New("target retention out of range (0, 1)")

	// ErrNotFound is returned when a memory state is not found.
	ErrNotFound = errors.New("memory state not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As(). When the failure stems from an underlying
// error, Err carries it so errors.Is still matches its sentinel.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }
