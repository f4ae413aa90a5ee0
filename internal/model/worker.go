package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/verdict-labs/verdict/internal/metrics"
	"github.com/verdict-labs/verdict/internal/traces"
)

// Training run outcomes, used for logs and metrics labels.
const (
	OutcomeTrained      = "trained"
	OutcomeInsufficient = "insufficient_data"
	OutcomeSkipped      = "skipped"
	OutcomeFailed       = "failed"
)

// maxTrainingSamples caps how much history a single run will load.
const maxTrainingSamples = 10000

// Worker periodically retrains the model from labeled history.
//
// Runs are single-flighted: if a run is still in progress when the next tick
// (or a manual trigger) arrives, the new run is skipped rather than queued,
// so overlapping schedules can never double-write model versions. A failed
// or skipped run never touches the model currently serving scores.
type Worker struct {
	source     SampleSource
	store      Store
	provider   *Provider
	trainer    *Trainer
	minSamples int
	interval   time.Duration
	logger     *slog.Logger

	running atomic.Bool
	stop    chan struct{}
}

// NewWorker creates a training worker.
// interval is typically 1 hour in production, seconds in demo mode.
func NewWorker(source SampleSource, store Store, provider *Provider,
	trainer *Trainer, minSamples int, interval time.Duration, logger *slog.Logger) *Worker {

	if trainer == nil {
		trainer = NewTrainer()
	}
	return &Worker{
		source:     source,
		store:      store,
		provider:   provider,
		trainer:    trainer,
		minSamples: minSamples,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start begins the training loop. Call in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on start
	_, _ = w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

// RunOnce executes a single training attempt and reports its outcome.
// Safe to call concurrently with the scheduled loop; at most one training
// run is ever in flight.
func (w *Worker) RunOnce(ctx context.Context) (string, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Info("training already in progress, skipping run")
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeSkipped).Inc()
		return OutcomeSkipped, nil
	}
	defer w.running.Store(false)

	count, err := w.source.CountLabeled(ctx)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("count labeled samples: %w", err)
	}

	if count < w.minSamples {
		w.logger.Info("insufficient data for training",
			"labeled", count,
			"required", w.minSamples,
		)
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeInsufficient).Inc()
		return OutcomeInsufficient, nil
	}

	samples, err := w.source.LoadSamples(ctx, maxTrainingSamples)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("load training samples: %w", err)
	}

	ctx, span := traces.StartSpan(ctx, "model.train", traces.SampleCount(len(samples)))
	defer span.End()

	start := time.Now()
	weights, m, err := w.trainer.Train(samples)
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("train: %w", err)
	}

	if err := w.store.Save(ctx, weights); err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("save model: %w", err)
	}

	if w.provider != nil {
		w.provider.Refresh(ctx)
	}

	metrics.TrainingRunsTotal.WithLabelValues(OutcomeTrained).Inc()
	metrics.ModelVersion.Set(float64(weights.Version))

	w.logger.Info("model trained",
		"version", weights.Version,
		"samples", m.Samples,
		"accuracy", m.Accuracy,
		"precision", m.Precision,
		"recall", m.Recall,
		"f1", m.F1,
		"duration", time.Since(start).String(),
	)
	return OutcomeTrained, nil
}
