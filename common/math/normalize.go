package math

import (
	"github.com/shopspring/decimal"
)

// NormalizeScores maps a score vector onto reward weights: every weight
// in [0,1] and the vector summing to exactly 1. Negative inputs are
// shifted up by the magnitude of the smallest value before scaling.
// Decimal arithmetic keeps the published sum exact.
func NormalizeScores(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		return []float64{1.0}
	}

	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	shift := decimal.Zero
	if min < 0 {
		shift = decimal.NewFromFloat(min).Abs()
	}

	adjusted := make([]decimal.Decimal, len(values))
	sum := decimal.Zero
	for i, v := range values {
		adjusted[i] = decimal.NewFromFloat(v).Add(shift)
		sum = sum.Add(adjusted[i])
	}

	weights := make([]float64, len(values))
	if sum.IsZero() {
		// All-zero vector, typically a freshly reset reputation store.
		uniform, _ := decimal.New(1, 0).Div(decimal.New(int64(len(values)), 0)).Float64()
		for i := range weights {
			weights[i] = uniform
		}
		return weights
	}
	for i := range adjusted {
		weights[i], _ = adjusted[i].Div(sum).Float64()
	}
	return weights
}
