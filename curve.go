package cadence

import "math"

// Retrievability returns the estimated probability of recall after
// elapsedDays given the card's stability.
//
// The curve is the power law R = (1 + F*t/S)^(-d) where d is the decay
// exponent from the weights and F is derived from d so that R equals the
// reference retention (0.9) at t = S.
//
// Edge cases: elapsedDays <= 0 returns 1 regardless of stability, and
// stability <= 0 with positive elapsed time returns 0 (the curve is
// undefined there; returning 0 keeps NaN/Inf out of callers).
func (p *Params) Retrievability(elapsedDays, stability float64) float64 {
	if elapsedDays <= 0 {
		return 1
	}
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+p.factor*elapsedDays/stability, p.decay)
}

// intervalForRetention inverts the forgetting curve: the elapsed time in
// days at which retrievability decays to the given retention.
func (p *Params) intervalForRetention(retention, stability float64) float64 {
	return stability / p.factor * (math.Pow(retention, 1.0/p.decay) - 1)
}
