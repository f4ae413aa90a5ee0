// Package risk combines the model's fraud probability with rule-based
// factors into a single score, level, and decision per transaction.
//
// Scores range from 0.0 (safe) to 1.0 (high risk). Transactions at or above
// the block threshold are rejected before the partner sees an approval.
package risk

import (
	"context"
	"errors"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
)

// ErrScoreNotFound is returned when no score exists for an ID.
var ErrScoreNotFound = errors.New("risk: score not found")

// Decision is the engine's verdict on a transaction.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// Level buckets a combined score for dashboards and alerting.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Default thresholds for risk decisions.
const (
	DefaultBlockThreshold  = 0.9
	DefaultReviewThreshold = 0.6
)

// Score is the result of evaluating a single transaction. The feature
// vector is retained so a later outcome report can become a training
// sample without re-deriving history-dependent features.
type Score struct {
	ID            string             `json:"id"`
	PartnerID     string             `json:"partnerId"`
	TransactionID string             `json:"transactionId"`
	Probability   float64            `json:"probability"`
	Combined      float64            `json:"score"`
	Level         Level              `json:"riskLevel"`
	Decision      Decision           `json:"decision"`
	Factors       map[string]float64 `json:"factors"`
	Features      features.Vector    `json:"-"`
	ModelVersion  int64              `json:"modelVersion"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// Store persists scores for the audit trail and lookup endpoints.
type Store interface {
	Record(ctx context.Context, score *Score) error
	Get(ctx context.Context, id string) (*Score, error)
	ListByPartner(ctx context.Context, partnerID string, limit int) ([]*Score, error)
}
