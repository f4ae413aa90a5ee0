package model

import (
	"time"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/idgen"
)

// Default training hyperparameters.
const (
	DefaultEpochs       = 100
	DefaultLearningRate = 0.01
)

// Trainer fits a logistic regression by per-sample gradient updates.
//
// The update loop is deliberately per-sample within each epoch, with no
// shuffling and zero-initialized weights: given the same sample order and
// constants, training is fully deterministic and two runs produce identical
// weight vectors. Callers that need different convergence behavior (true
// batch-averaged gradients, shuffling) must treat that as a model change,
// not a drop-in swap.
type Trainer struct {
	epochs       int
	learningRate float64
}

// NewTrainer creates a trainer with the default hyperparameters.
func NewTrainer() *Trainer {
	return &Trainer{
		epochs:       DefaultEpochs,
		learningRate: DefaultLearningRate,
	}
}

// WithEpochs overrides the number of training passes.
func (t *Trainer) WithEpochs(n int) *Trainer {
	if n > 0 {
		t.epochs = n
	}
	return t
}

// WithLearningRate overrides the per-update step size.
func (t *Trainer) WithLearningRate(lr float64) *Trainer {
	if lr > 0 {
		t.learningRate = lr
	}
	return t
}

// Train fits weights on the given samples and evaluates them on the same
// data. The returned model carries Version = TrainedAt in unix seconds.
//
// Minimum-sample-count policy belongs to the scheduler; Train itself only
// rejects inputs it cannot compute on (empty set, wrong vector length).
func (t *Trainer) Train(samples []TrainingSample) (*Weights, *Metrics, error) {
	if len(samples) == 0 {
		return nil, nil, ErrNoSamples
	}
	for i := range samples {
		if len(samples[i].Features) != features.Count {
			return nil, nil, ErrBadSample
		}
	}

	weights := make([]float64, features.Count)

	for epoch := 0; epoch < t.epochs; epoch++ {
		for i := range samples {
			x := samples[i].Features
			y := float64(samples[i].Label)

			p := Sigmoid(dotRaw(weights, x))
			errTerm := y - p
			for j := range weights {
				weights[j] += t.learningRate * errTerm * x[j]
			}
		}
	}

	now := time.Now().UTC()
	w := &Weights{
		ID:        idgen.WithPrefix("mdl_"),
		Values:    weights,
		Version:   now.Unix(),
		TrainedAt: now,
	}

	return w, evaluate(w, samples), nil
}

// evaluate classifies the training set at the 0.5 boundary and computes
// accuracy, precision, recall, and F1. Every ratio guards its denominator:
// a degenerate sample set yields 0, never NaN.
func evaluate(w *Weights, samples []TrainingSample) *Metrics {
	var tp, tn, fp, fn int
	for i := range samples {
		p := Score(w, samples[i].Features)
		predicted := 0
		if p > 0.5 {
			predicted = 1
		}
		switch {
		case predicted == 1 && samples[i].Label == 1:
			tp++
		case predicted == 0 && samples[i].Label == 0:
			tn++
		case predicted == 1 && samples[i].Label == 0:
			fp++
		default:
			fn++
		}
	}

	m := &Metrics{Samples: len(samples)}
	if total := tp + tn + fp + fn; total > 0 {
		m.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func dotRaw(w []float64, x features.Vector) float64 {
	var sum float64
	for i := range w {
		sum += w[i] * x[i]
	}
	return sum
}
