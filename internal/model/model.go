// Package model implements the fraud classifier: offline training, versioned
// weight persistence, and online scoring.
//
// The classifier is a logistic regression over the fixed feature vector
// defined in internal/features. Training runs as an infrequent background
// job; scoring is a pure dot product and runs on every verification request.
// A model is immutable once written. "Current" means highest version, and
// scores are never recomputed retroactively when a newer model lands.
package model

import (
	"context"
	"errors"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
)

// Errors
var (
	ErrNoModel   = errors.New("model: no trained model available")
	ErrNoSamples = errors.New("model: training requires at least one sample")
	ErrBadSample = errors.New("model: sample feature length does not match vector contract")
)

// Weights is a trained, versioned weight vector.
// Version is the training time in unix seconds, so "latest wins" ordering
// falls out of a simple max.
type Weights struct {
	ID        string    `json:"id"`
	Values    []float64 `json:"values"`
	Version   int64     `json:"version"`
	TrainedAt time.Time `json:"trainedAt"`
}

// TrainingSample pairs a feature vector with a ground-truth fraud label.
type TrainingSample struct {
	TransactionID string          `json:"transactionId"`
	Features      features.Vector `json:"features"`
	Label         int             `json:"label"` // 1 = fraud, 0 = legitimate
}

// Metrics reports self-evaluation results from a training run.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Samples   int     `json:"samples"`
}

// Store persists trained models.
type Store interface {
	// Save writes an immutable model version.
	Save(ctx context.Context, w *Weights) error
	// LoadLatest returns the model with the highest version,
	// or ErrNoModel if nothing has been trained yet.
	LoadLatest(ctx context.Context) (*Weights, error)
}

// SampleSource supplies labeled training data from the store of record.
type SampleSource interface {
	// CountLabeled returns how many ground-truth labeled samples exist.
	CountLabeled(ctx context.Context) (int, error)
	// LoadSamples returns up to limit labeled samples in a fixed,
	// reproducible order (insertion order).
	LoadSamples(ctx context.Context, limit int) ([]TrainingSample, error)
}
