package cadence

import "fmt"

// NextIntervalDays inverts the forgetting curve to find the elapsed time at
// which retrievability decays to targetRetention, then applies the
// rating-dependent adjustment (hard penalty, easy bonus) so an Easy rating
// yields a materially longer interval than a Good one for the same inputs.
//
// The result is a pure duration in days, strictly positive; converting it
// to a next-review timestamp is the caller's concern.
func (p *Params) NextIntervalDays(targetRetention, stability float64, r Rating) (float64, error) {
	if err := checkRating(r); err != nil {
		return 0, err
	}
	if !finite(targetRetention) || targetRetention <= 0 || targetRetention >= 1 {
		return 0, fmt.Errorf("%w: %g", ErrInvalidRetention, targetRetention)
	}
	if err := checkStability(stability); err != nil {
		return 0, err
	}

	days := p.intervalForRetention(targetRetention, stability)
	switch r {
	case Hard:
		days *= p.HardPenalty
	case Easy:
		days *= p.EasyBonus
	}
	return days, nil
}
