package cadence

import (
	"fmt"
	"math"
	"time"
)

// The update engine: rating-driven memory state transitions. Every function
// here is pure and deterministic; invalid inputs are rejected rather than
// clamped, since a clamp would mask a caller bug.

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func checkRating(r Rating) error {
	if !r.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return nil
}

func checkStability(s float64) error {
	if !finite(s) {
		return fmt.Errorf("%w: stability", ErrNonFiniteInput)
	}
	if s <= 0 {
		return fmt.Errorf("%w: %g", ErrNonPositiveStability, s)
	}
	return nil
}

func checkDifficulty(d float64) error {
	if !finite(d) {
		return fmt.Errorf("%w: difficulty", ErrNonFiniteInput)
	}
	if d < 1 || d > 10 {
		return fmt.Errorf("%w: %g", ErrInvalidDifficulty, d)
	}
	return nil
}

// InitialStability returns S0 for the first rating of a card, straight from
// the weight slot for that rating. Weights are pre-validated at load time,
// so no clamping happens here.
func (p *Params) InitialStability(r Rating) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	return p.InitStability[r-1], nil
}

// InitialDifficulty returns D0 for the first rating of a card, clamped to
// [1, 10].
func (p *Params) InitialDifficulty(r Rating) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	return clampDifficulty(p.initialDifficultyRaw(r)), nil
}

// initialDifficultyRaw is D0 without clamping. The unclamped Easy value is
// the mean-reversion target in NextDifficulty.
func (p *Params) initialDifficultyRaw(r Rating) float64 {
	return p.DifficultyBase - math.Exp(p.DifficultySlope*float64(r-1)) + 1
}

// NextDifficulty moves difficulty away from its prior value proportionally
// to (rating - 3), blends the result toward the easy-rating initial
// difficulty by the mean-reversion weight, and clamps to [1, 10]. Again
// strictly increases difficulty relative to the prior value; Easy strictly
// decreases it.
func (p *Params) NextDifficulty(difficulty float64, r Rating) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	if err := checkDifficulty(difficulty); err != nil {
		return 0, err
	}

	delta := -p.DifficultyShift * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*delta/9
	reverted := p.MeanReversion*p.initialDifficultyRaw(Easy) + (1-p.MeanReversion)*damped
	return clampDifficulty(reverted), nil
}

// NextRecallStability computes stability after a successful recall
// (rating >= Hard). The growth factor increases as difficulty is lower, as
// current stability is lower, and as pre-review retrievability is lower,
// modulated by the hard penalty and easy bonus.
func (p *Params) NextRecallStability(difficulty, stability, retrievability float64, r Rating) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	if r == Again {
		return 0, fmt.Errorf("%w: recall update requires rating >= Hard", ErrInvalidRating)
	}
	if err := checkStability(stability); err != nil {
		return 0, err
	}
	if err := checkDifficulty(difficulty); err != nil {
		return 0, err
	}
	if !finite(retrievability) || retrievability < 0 || retrievability > 1 {
		return 0, fmt.Errorf("%w: retrievability", ErrNonFiniteInput)
	}

	hardPenalty := 1.0
	if r == Hard {
		hardPenalty = p.HardPenalty
	}
	easyBonus := 1.0
	if r == Easy {
		easyBonus = p.EasyBonus
	}

	growth := math.Exp(p.RecallScale) *
		(11 - difficulty) *
		math.Pow(stability, -p.RecallStabilityDecay) *
		(math.Exp((1-retrievability)*p.RecallRetrievalGain) - 1) *
		hardPenalty * easyBonus
	return stability * (1 + growth), nil
}

// NextForgetStability computes post-lapse stability after an Again rating.
// The result never exceeds the prior stability.
func (p *Params) NextForgetStability(difficulty, stability, retrievability float64) (float64, error) {
	if err := checkStability(stability); err != nil {
		return 0, err
	}
	if err := checkDifficulty(difficulty); err != nil {
		return 0, err
	}
	if !finite(retrievability) || retrievability < 0 || retrievability > 1 {
		return 0, fmt.Errorf("%w: retrievability", ErrNonFiniteInput)
	}

	long := p.ForgetScale *
		math.Pow(difficulty, -p.ForgetDifficultyDecay) *
		(math.Pow(stability+1, p.ForgetStabilityGain) - 1) *
		math.Exp((1-retrievability)*p.ForgetRetrievalGain)
	short := stability / math.Exp(p.SameDayScale*p.SameDayShift)
	return math.Min(long, short), nil
}

// SameDayStability handles a repeat review within the same-day window
// (cramming or relearning on the day of a lapse). Below the cutoff it
// applies a multiplicative bump keyed off (rating - 3), floored so stability
// never decreases; at or beyond the cutoff the input stability is returned
// unchanged.
func (p *Params) SameDayStability(stability float64, r Rating, elapsedHours, cutoffHours float64) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	if err := checkStability(stability); err != nil {
		return 0, err
	}
	if !finite(elapsedHours) || elapsedHours < 0 {
		return 0, fmt.Errorf("%w: elapsed hours", ErrNonFiniteInput)
	}
	if !finite(cutoffHours) || cutoffHours <= 0 {
		return 0, fmt.Errorf("%w: same-day cutoff", ErrNonFiniteInput)
	}

	if elapsedHours >= cutoffHours {
		return stability, nil
	}

	bump := math.Exp(p.SameDayScale*(float64(r)-3+p.SameDayShift)) *
		math.Pow(stability, -p.SameDayStabilityDecay)
	if bump < 1 {
		bump = 1
	}
	return stability * bump, nil
}

// ApplyReview runs one full engine transition: it reads the prior memory
// state (nil for a brand-new card), applies the rating at the given time,
// and returns the new state together with the pre-review retrievability and
// the next interval. targetRetention selects the scheduling policy value;
// sameDayCutoffHours bounds the same-day update window.
func (p *Params) ApplyReview(prior *MemoryState, r Rating, now time.Time, targetRetention, sameDayCutoffHours float64) (*ReviewResult, error) {
	if err := checkRating(r); err != nil {
		return nil, err
	}

	var (
		state          MemoryState
		retrievability float64
		err            error
	)

	switch {
	case prior == nil || prior.LastReviewAt == nil:
		state, err = p.initialState(prior, r)
		retrievability = 0 // no prior state to predict from

	default:
		if err := checkStability(prior.Stability); err != nil {
			return nil, err
		}
		if err := checkDifficulty(prior.Difficulty); err != nil {
			return nil, err
		}

		elapsed := now.Sub(*prior.LastReviewAt)
		elapsedDays := elapsed.Hours() / 24.0
		retrievability = p.Retrievability(elapsedDays, prior.Stability)

		state = *prior
		if elapsed.Hours() < sameDayCutoffHours {
			state.Stability, err = p.SameDayStability(prior.Stability, r, elapsed.Hours(), sameDayCutoffHours)
		} else {
			if r == Again {
				state.Stability, err = p.NextForgetStability(prior.Difficulty, prior.Stability, retrievability)
			} else {
				state.Stability, err = p.NextRecallStability(prior.Difficulty, prior.Stability, retrievability, r)
			}
		}
		if err != nil {
			return nil, err
		}
		state.Difficulty, err = p.NextDifficulty(prior.Difficulty, r)
		if err != nil {
			return nil, err
		}
		state.ReviewState = nextReviewState(prior.ReviewState, r, elapsed.Hours() >= sameDayCutoffHours)
	}
	if err != nil {
		return nil, err
	}

	interval, err := p.NextIntervalDays(targetRetention, state.Stability, r)
	if err != nil {
		return nil, err
	}

	reviewedAt := now
	state.LastReviewAt = &reviewedAt
	state.NextReviewAt = now.Add(daysToDuration(interval))
	state.UpdatedAt = now

	return &ReviewResult{
		NewState:             state,
		RetrievabilityBefore: retrievability,
		NextIntervalDays:     interval,
	}, nil
}

// initialState builds the state for a card's first rating.
func (p *Params) initialState(prior *MemoryState, r Rating) (MemoryState, error) {
	var state MemoryState
	if prior != nil {
		state = *prior
	}

	s0, err := p.InitialStability(r)
	if err != nil {
		return MemoryState{}, err
	}
	d0, err := p.InitialDifficulty(r)
	if err != nil {
		return MemoryState{}, err
	}

	state.Stability = s0
	state.Difficulty = d0
	state.ReviewState = StateLearning
	return state, nil
}

// nextReviewState advances the learning stage. Cards graduate to the review
// cycle on a successful cross-day recall; an Again rating in the review
// cycle demotes to relearning. Same-day repeats never change stage.
func nextReviewState(prev ReviewState, r Rating, crossDay bool) ReviewState {
	if prev == StateUnset {
		prev = StateLearning
	}
	if !crossDay {
		return prev
	}
	if r == Again {
		if prev == StateReview {
			return StateRelearning
		}
		return prev
	}
	return StateReview
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}
