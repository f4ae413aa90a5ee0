package model

import (
	"math"

	"github.com/verdict-labs/verdict/internal/features"
)

// NeutralProbability is returned when no trained model is available.
// Downstream risk mapping treats it as "no ML signal" and degrades to
// rule-based factors only.
const NeutralProbability = 0.5

// Score returns the fraud probability for a feature vector under the given
// weights: sigmoid(dot(w, x)). A nil or empty model yields NeutralProbability
// so callers never have to special-case the cold-start window.
func Score(w *Weights, x features.Vector) float64 {
	if w == nil || len(w.Values) == 0 {
		return NeutralProbability
	}
	return Sigmoid(dot(w.Values, x))
}

// Sigmoid is the logistic function. Sigmoid(0) is exactly 0.5.
func Sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(w []float64, x features.Vector) float64 {
	n := len(w)
	if len(x) < n {
		n = len(x)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w[i] * x[i]
	}
	return sum
}
