package cadence

import (
	"fmt"
	"math"
)

// referenceRetention anchors the forgetting curve: retrievability equals
// this value when elapsed time equals stability.
const referenceRetention = 0.9

// WeightVector is the public 21-element weight format. Slot roles are fixed:
//
//	w[0..3]   initial stability by rating
//	w[4..7]   difficulty curve (base, slope, shift, mean reversion)
//	w[8..10]  recall stability growth
//	w[11..14] post-lapse stability
//	w[15..16] hard penalty / easy bonus
//	w[17..19] same-day update
//	w[20]     forgetting-curve decay exponent
//
// A WeightVector is validated once at load time and shared read-only
// afterwards; the engine itself only ever sees the named Params view.
type WeightVector [21]float64

// DefaultWeights is the stock weight set used when no trained weights are
// configured.
var DefaultWeights = WeightVector{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

// weightLowerBounds and weightUpperBounds define the allowed range per slot.
var (
	weightLowerBounds = WeightVector{
		0.001, 0.001, 0.001, 0.001,
		1.0, 0.001, 0.001, 0.001,
		0.0, 0.0, 0.001, 0.001,
		0.001, 0.001, 0.0, 0.0,
		1.0, 0.0, 0.0, 0.0,
		0.1,
	}
	weightUpperBounds = WeightVector{
		100.0, 100.0, 100.0, 100.0,
		10.0, 4.0, 4.0, 0.75,
		4.5, 0.8, 3.5, 5.0,
		0.25, 0.9, 4.0, 1.0,
		6.0, 2.0, 2.0, 0.8,
		0.8,
	}
)

// Validate checks that every slot is finite and within its bounds.
func (w WeightVector) Validate() error {
	for i := range w {
		if math.IsNaN(w[i]) || math.IsInf(w[i], 0) {
			return fmt.Errorf("%w: w[%d] is not finite", ErrInvalidWeights, i)
		}
		if w[i] < weightLowerBounds[i] || w[i] > weightUpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidWeights, i, w[i], weightLowerBounds[i], weightUpperBounds[i])
		}
	}
	return nil
}

// Params is the named-field view of a validated WeightVector. The mapping
// from slot indices to fields happens once in LoadWeights so the engine
// formulas never index into the flat vector.
type Params struct {
	InitStability [4]float64 // w[0..3], indexed by rating-1

	DifficultyBase  float64 // w[4]
	DifficultySlope float64 // w[5]
	DifficultyShift float64 // w[6]
	MeanReversion   float64 // w[7]

	RecallScale          float64 // w[8]
	RecallStabilityDecay float64 // w[9]
	RecallRetrievalGain  float64 // w[10]

	ForgetScale           float64 // w[11]
	ForgetDifficultyDecay float64 // w[12]
	ForgetStabilityGain   float64 // w[13]
	ForgetRetrievalGain   float64 // w[14]

	HardPenalty float64 // w[15]
	EasyBonus   float64 // w[16]

	SameDayScale          float64 // w[17]
	SameDayShift          float64 // w[18]
	SameDayStabilityDecay float64 // w[19]

	DecayExponent float64 // w[20]

	// Precomputed curve constants.
	decay  float64 // -DecayExponent
	factor float64 // referenceRetention^(1/decay) - 1
}

// LoadWeights validates the public weight vector and maps it into Params.
func LoadWeights(w WeightVector) (*Params, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	decay := -w[20]
	p := &Params{
		InitStability: [4]float64{w[0], w[1], w[2], w[3]},

		DifficultyBase:  w[4],
		DifficultySlope: w[5],
		DifficultyShift: w[6],
		MeanReversion:   w[7],

		RecallScale:          w[8],
		RecallStabilityDecay: w[9],
		RecallRetrievalGain:  w[10],

		ForgetScale:           w[11],
		ForgetDifficultyDecay: w[12],
		ForgetStabilityGain:   w[13],
		ForgetRetrievalGain:   w[14],

		HardPenalty: w[15],
		EasyBonus:   w[16],

		SameDayScale:          w[17],
		SameDayShift:          w[18],
		SameDayStabilityDecay: w[19],

		DecayExponent: w[20],

		decay:  decay,
		factor: math.Pow(referenceRetention, 1.0/decay) - 1.0,
	}
	return p, nil
}

// Vector maps Params back to the public 21-element format.
func (p *Params) Vector() WeightVector {
	return WeightVector{
		p.InitStability[0], p.InitStability[1], p.InitStability[2], p.InitStability[3],
		p.DifficultyBase, p.DifficultySlope, p.DifficultyShift, p.MeanReversion,
		p.RecallScale, p.RecallStabilityDecay, p.RecallRetrievalGain,
		p.ForgetScale, p.ForgetDifficultyDecay, p.ForgetStabilityGain, p.ForgetRetrievalGain,
		p.HardPenalty, p.EasyBonus,
		p.SameDayScale, p.SameDayShift, p.SameDayStabilityDecay,
		p.DecayExponent,
	}
}
