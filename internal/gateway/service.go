package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/metrics"
	"github.com/verdict-labs/verdict/internal/model"
	"github.com/verdict-labs/verdict/internal/partner"
	"github.com/verdict-labs/verdict/internal/ratelimit"
	"github.com/verdict-labs/verdict/internal/realtime"
	"github.com/verdict-labs/verdict/internal/risk"
	"github.com/verdict-labs/verdict/internal/traces"
)

// Service implements verification business logic.
type Service struct {
	limiter *ratelimit.Limiter
	engine  *risk.Engine
	models  *model.Provider
	scores  risk.Store
	samples model.SampleStore
	history *History
	feed    *realtime.Hub
	logger  *slog.Logger
}

// NewService creates a verification service. The feed may be nil when the
// decision stream is disabled; samples may be nil to disable outcome
// reporting.
func NewService(limiter *ratelimit.Limiter, engine *risk.Engine, models *model.Provider, scores risk.Store, samples model.SampleStore, feed *realtime.Hub, logger *slog.Logger) *Service {
	return &Service{
		limiter: limiter,
		engine:  engine,
		models:  models,
		scores:  scores,
		samples: samples,
		history: NewHistory(),
		feed:    feed,
		logger:  logger,
	}
}

// Verify meters, scores, and records a single transaction.
func (s *Service) Verify(ctx context.Context, p *partner.Partner, req VerifyRequest) (*VerifyResponse, error) {
	res, err := s.limiter.CheckAndConsume(ctx, p.ID, p.Limit())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !res.Allowed {
		metrics.RateLimitDeniedTotal.WithLabelValues(string(p.Tier)).Inc()
		return nil, &ratelimit.QuotaExceededError{ResetAt: res.ResetAt}
	}

	return s.score(ctx, p, req)
}

// VerifyBatch meters the whole batch up front (a batch of k transactions
// costs k budget units) and then scores each item independently. A bad
// item produces an item-level error, never a batch failure.
func (s *Service) VerifyBatch(ctx context.Context, p *partner.Partner, req BatchVerifyRequest) (*BatchVerifyResponse, error) {
	n := len(req.Transactions)
	if n == 0 {
		return nil, ErrEmptyBatch
	}
	if n > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	ctx, span := traces.StartSpan(ctx, "gateway.verify_batch",
		traces.PartnerID(p.ID), traces.BatchSize(n))
	defer span.End()

	res, err := s.limiter.ConsumeN(ctx, p.ID, p.Limit(), n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !res.Allowed {
		metrics.RateLimitDeniedTotal.WithLabelValues(string(p.Tier)).Inc()
		return nil, &ratelimit.QuotaExceededError{ResetAt: res.ResetAt}
	}

	out := &BatchVerifyResponse{Results: make([]BatchItem, 0, n)}
	for i, tx := range req.Transactions {
		item := BatchItem{Index: i}
		result, err := s.score(ctx, p, tx)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Result = result
		}
		out.Results = append(out.Results, item)
	}
	return out, nil
}

// score runs the full pipeline for one already-metered transaction.
func (s *Service) score(ctx context.Context, p *partner.Partner, req VerifyRequest) (*VerifyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "gateway.score", traces.PartnerID(p.ID))
	defer span.End()

	tx := req.transaction()
	hist := s.history.Snapshot(tx)
	vector := features.Extract(*tx, hist)

	probability, version := s.probability(ctx, vector)
	score := s.engine.Evaluate(ctx, p.ID, tx, vector, probability, version)

	// Don't record a decision the caller never received.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.scores.Record(ctx, score); err != nil {
		// The decision stands; losing one audit row is preferable to
		// failing the verification.
		s.logger.Error("score record failed", "score_id", score.ID, "error", err)
	}

	s.history.Record(tx)
	s.feed.PublishScore(score)

	metrics.VerificationsTotal.WithLabelValues(string(score.Decision)).Inc()
	metrics.VerificationDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(traces.Decision(string(score.Decision)), traces.Probability(probability))

	s.logger.Info("transaction verified",
		"partner_id", p.ID,
		"transaction_id", tx.ID,
		"decision", score.Decision,
		"risk_level", score.Level,
		"score", score.Combined)

	return toResponse(score), nil
}

// probability scores the feature vector with the current model, falling
// back to the neutral probability when no model has been trained yet or
// the store is unreachable.
func (s *Service) probability(ctx context.Context, vector features.Vector) (float64, int64) {
	weights, err := s.models.Current(ctx)
	if err != nil {
		if !model.IsNoModel(err) {
			s.logger.Warn("model load failed, scoring neutral", "error", err)
		}
		return model.NeutralProbability, 0
	}
	return model.Score(weights, vector), weights.Version
}

// ReportOutcome records the ground-truth label for a previously verified
// transaction, turning it into a training sample for the next model run.
func (s *Service) ReportOutcome(ctx context.Context, p *partner.Partner, id string, fraud bool) error {
	if s.samples == nil {
		return ErrOutcomeDisabled
	}
	score, err := s.scores.Get(ctx, id)
	if err != nil {
		return err
	}
	if score.PartnerID != p.ID {
		return risk.ErrScoreNotFound
	}

	label := 0
	if fraud {
		label = 1
	}
	return s.samples.Add(ctx, model.TrainingSample{
		TransactionID: score.TransactionID,
		Features:      score.Features,
		Label:         label,
	})
}

// GetVerification returns a previously recorded decision. Partners can
// only see their own.
func (s *Service) GetVerification(ctx context.Context, p *partner.Partner, id string) (*VerifyResponse, error) {
	score, err := s.scores.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if score.PartnerID != p.ID {
		return nil, risk.ErrScoreNotFound
	}
	return toResponse(score), nil
}

// ListVerifications returns the partner's most recent decisions.
func (s *Service) ListVerifications(ctx context.Context, p *partner.Partner, limit int) ([]*VerifyResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	scores, err := s.scores.ListByPartner(ctx, p.ID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*VerifyResponse, 0, len(scores))
	for _, score := range scores {
		out = append(out, toResponse(score))
	}
	return out, nil
}

func toResponse(score *risk.Score) *VerifyResponse {
	return &VerifyResponse{
		RequestID:     score.ID,
		TransactionID: score.TransactionID,
		Decision:      string(score.Decision),
		RiskLevel:     string(score.Level),
		Score:         score.Combined,
		Probability:   score.Probability,
		Factors:       score.Factors,
		ModelVersion:  score.ModelVersion,
		EvaluatedAt:   score.CreatedAt,
	}
}
