package score

import (
	"fmt"
	"math"
)

// Weights holds the relative contribution of each signal to the aggregate
// confidence. Amount dominates because it is the strongest discriminator;
// date is a tie-breaker only.
type Weights struct {
	Similarity float64
	Amount     float64
	Date       float64
}

// DefaultWeights returns the standard weight configuration.
func DefaultWeights() Weights {
	return Weights{
		Similarity: 0.35,
		Amount:     0.4,
		Date:       0.05,
	}
}

// Validate ensures the weights are usable.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"similarity": w.Similarity,
		"amount":     w.Amount,
		"date":       w.Date,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%s weight must be between 0 and 1, got %v", name, v)
		}
	}

	sum := w.Similarity + w.Amount + w.Date
	if sum <= 0 || sum > 1 {
		return fmt.Errorf("weights must sum to a value in (0, 1], got %.4f", sum)
	}
	return nil
}

// Breakdown records the individual signal scores behind one confidence
// value. It is surfaced for audit and review; it never alters behavior.
type Breakdown struct {
	Similarity float64
	Amount     float64
	Date       float64
	Confidence float64
}

// Combine folds the three signal scores into one confidence value. For a
// fixed input the output is byte-identical across calls.
func Combine(w Weights, similarity, amount, date float64) Breakdown {
	return Breakdown{
		Similarity: similarity,
		Amount:     amount,
		Date:       date,
		Confidence: similarity*w.Similarity + amount*w.Amount + date*w.Date,
	}
}
