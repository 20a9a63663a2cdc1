package cadence

import (
	"errors"
	"math"
	"testing"
)

// At the reference retention the raw interval equals the stability, so a
// Good rating schedules exactly S days out.
func TestNextIntervalDays_GoodAtReferenceRetention(t *testing.T) {
	p := mustParams(t)

	for _, stability := range []float64{0.5, 3, 21, 365} {
		got, err := p.NextIntervalDays(0.9, stability, Good)
		if err != nil {
			t.Fatalf("NextIntervalDays failed: %v", err)
		}
		if math.Abs(got-stability) > 1e-9 {
			t.Errorf("NextIntervalDays(0.9, %v, Good) = %v, want %v", stability, got, stability)
		}
	}
}

func TestNextIntervalDays_RatingAdjustment(t *testing.T) {
	p := mustParams(t)
	const stability = 10.0

	hard, err := p.NextIntervalDays(0.9, stability, Hard)
	if err != nil {
		t.Fatalf("Hard failed: %v", err)
	}
	good, err := p.NextIntervalDays(0.9, stability, Good)
	if err != nil {
		t.Fatalf("Good failed: %v", err)
	}
	easy, err := p.NextIntervalDays(0.9, stability, Easy)
	if err != nil {
		t.Fatalf("Easy failed: %v", err)
	}

	if !(hard < good && good < easy) {
		t.Errorf("interval ordering hard=%v good=%v easy=%v, want hard < good < easy", hard, good, easy)
	}
	if want := good * p.HardPenalty; math.Abs(hard-want) > 1e-9 {
		t.Errorf("hard interval = %v, want %v", hard, want)
	}
	if want := good * p.EasyBonus; math.Abs(easy-want) > 1e-9 {
		t.Errorf("easy interval = %v, want %v", easy, want)
	}
}

// Lower target retention means longer intervals: the card is allowed to
// decay further before it comes back.
func TestNextIntervalDays_RetentionMonotonic(t *testing.T) {
	p := mustParams(t)

	strict, err := p.NextIntervalDays(0.95, 10, Good)
	if err != nil {
		t.Fatalf("NextIntervalDays(0.95) failed: %v", err)
	}
	relaxed, err := p.NextIntervalDays(0.85, 10, Good)
	if err != nil {
		t.Fatalf("NextIntervalDays(0.85) failed: %v", err)
	}

	if strict >= relaxed {
		t.Errorf("interval at 0.95 = %v, at 0.85 = %v, want strict < relaxed", strict, relaxed)
	}
}

func TestNextIntervalDays_InvalidInputs(t *testing.T) {
	p := mustParams(t)

	for _, retention := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		if _, err := p.NextIntervalDays(retention, 10, Good); !errors.Is(err, ErrInvalidRetention) {
			t.Errorf("NextIntervalDays(retention=%v) = %v, want ErrInvalidRetention", retention, err)
		}
	}
	if _, err := p.NextIntervalDays(0.9, 0, Good); !errors.Is(err, ErrNonPositiveStability) {
		t.Errorf("NextIntervalDays(stability=0) = %v, want ErrNonPositiveStability", err)
	}
	if _, err := p.NextIntervalDays(0.9, 10, Rating(9)); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("NextIntervalDays(rating 9) = %v, want ErrInvalidRating", err)
	}
}
