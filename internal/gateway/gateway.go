// Package gateway exposes the verification API: it authenticates partners,
// meters their request budgets, runs feature extraction and scoring, and
// persists every decision for audit.
package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/idgen"
)

// MaxBatchSize caps the number of transactions in one batch call.
const MaxBatchSize = 1000

// Errors
var (
	ErrEmptyBatch    = errors.New("gateway: batch contains no transactions")
	ErrBatchTooLarge = fmt.Errorf("gateway: batch exceeds %d transactions", MaxBatchSize)
	ErrUnavailable   = errors.New("gateway: dependency unavailable")
	// ErrOutcomeDisabled is returned when no sample store is configured.
	ErrOutcomeDisabled = errors.New("gateway: outcome reporting disabled")
)

// InvalidTransactionError reports which field of a request was rejected.
type InvalidTransactionError struct {
	Field  string
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	return fmt.Sprintf("gateway: invalid transaction: %s %s", e.Field, e.Reason)
}

// VerifyRequest is the wire form of one transaction to score.
type VerifyRequest struct {
	TransactionID string         `json:"transactionId"`
	Amount        float64        `json:"amount"`
	SenderID      string         `json:"senderId"`
	RecipientID   string         `json:"recipientId"`
	Channel       string         `json:"channel"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request's required fields.
func (r *VerifyRequest) Validate() error {
	if strings.TrimSpace(r.SenderID) == "" {
		return &InvalidTransactionError{Field: "senderId", Reason: "is required"}
	}
	if strings.TrimSpace(r.RecipientID) == "" {
		return &InvalidTransactionError{Field: "recipientId", Reason: "is required"}
	}
	if r.Amount <= 0 {
		return &InvalidTransactionError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// transaction converts the request into the extractor's input, filling in
// an ID and timestamp when the caller omitted them.
func (r *VerifyRequest) transaction() *features.Transaction {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	id := r.TransactionID
	if id == "" {
		id = idgen.WithPrefix("tx_")
	}
	return &features.Transaction{
		ID:          id,
		Amount:      r.Amount,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Channel:     features.Channel(r.Channel),
		Timestamp:   ts,
		Metadata:    r.Metadata,
	}
}

// VerifyResponse is the decision returned for one transaction.
type VerifyResponse struct {
	RequestID     string             `json:"requestId"`
	TransactionID string             `json:"transactionId"`
	Decision      string             `json:"decision"`
	RiskLevel     string             `json:"riskLevel"`
	Score         float64            `json:"score"`
	Probability   float64            `json:"probability"`
	Factors       map[string]float64 `json:"factors"`
	ModelVersion  int64              `json:"modelVersion"`
	EvaluatedAt   time.Time          `json:"evaluatedAt"`
}

// OutcomeRequest labels a verified transaction with its ground truth.
type OutcomeRequest struct {
	Fraud bool `json:"fraud"`
}

// BatchVerifyRequest carries up to MaxBatchSize transactions.
type BatchVerifyRequest struct {
	Transactions []VerifyRequest `json:"transactions"`
}

// BatchItem is the per-transaction outcome of a batch call. Exactly one of
// Result and Error is set; a bad transaction never fails its neighbors.
type BatchItem struct {
	Index  int             `json:"index"`
	Result *VerifyResponse `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BatchVerifyResponse preserves request order in Results.
type BatchVerifyResponse struct {
	Results []BatchItem `json:"results"`
}
