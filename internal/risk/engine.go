package risk

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/idgen"
	"github.com/verdict-labs/verdict/internal/trust"
)

const (
	maxWindowSize  = 1000
	windowDuration = 5 * time.Minute

	// velocityCeiling is the 5-minute transaction count that maps to a
	// velocity factor of 1.0.
	velocityCeiling = 20

	// threatPatternWeight is the factor contributed by a recipient that
	// matches a flagged identifier prefix.
	threatPatternWeight = 0.8

	// modelShare and ruleShare split the combined score between the
	// model probability and the rule factors.
	modelShare = 0.6
	ruleShare  = 0.4
)

// Engine combines model output with rule factors into a decision.
// Persistence of the resulting Score is the caller's concern.
type Engine struct {
	windows         sync.Map // map[string]*senderWindow
	trust           *trust.Service
	blockThreshold  float64
	reviewThreshold float64
}

type senderWindow struct {
	mu    sync.Mutex
	stamp []time.Time
}

// NewEngine creates a risk engine backed by the given trust service.
func NewEngine(trustSvc *trust.Service) *Engine {
	return &Engine{
		trust:           trustSvc,
		blockThreshold:  DefaultBlockThreshold,
		reviewThreshold: DefaultReviewThreshold,
	}
}

// WithBlockThreshold overrides the default block threshold.
func (e *Engine) WithBlockThreshold(t float64) *Engine {
	e.blockThreshold = t
	return e
}

// WithReviewThreshold overrides the default review threshold.
func (e *Engine) WithReviewThreshold(t float64) *Engine {
	e.reviewThreshold = t
	return e
}

// Evaluate scores a transaction given the model's fraud probability.
// Trust lookups degrade to neutral values on error so a cache or store
// outage slows decisions down rather than failing them.
func (e *Engine) Evaluate(ctx context.Context, partnerID string, tx *features.Transaction, vector features.Vector, probability float64, modelVersion int64) *Score {
	factors := map[string]float64{
		"model_probability": probability,
	}

	senderListed := e.isBlacklisted(ctx, tx.SenderID)
	recipientListed := e.isBlacklisted(ctx, tx.RecipientID)
	if senderListed {
		factors["sender_blacklisted"] = 1.0
	}
	if recipientListed {
		factors["recipient_blacklisted"] = 1.0
	}

	trustScore := trust.NeutralScore
	if e.trust != nil {
		if s, err := e.trust.TrustScore(ctx, tx.SenderID); err == nil {
			trustScore = s
		}
	}
	// Trust below neutral contributes risk; above neutral contributes none.
	factors["sender_trust"] = clamp01((trust.NeutralScore - trustScore) * 2)

	factors["velocity"] = e.velocityFactor(tx.SenderID)

	if e.matchesThreatPattern(ctx, tx.RecipientID) {
		factors["threat_pattern"] = threatPatternWeight
	}

	var ruleScore float64
	for name, weight := range factors {
		if name == "model_probability" {
			continue
		}
		ruleScore += weight
	}

	combined := clamp01(modelShare*probability + ruleShare*clamp01(ruleScore))

	// Blacklisted parties are always blocked regardless of model output.
	if senderListed || recipientListed {
		combined = math.Max(combined, e.blockThreshold)
	}

	combined = math.Round(combined*1000) / 1000

	score := &Score{
		ID:            idgen.WithPrefix("risk_"),
		PartnerID:     partnerID,
		TransactionID: tx.ID,
		Probability:   math.Round(probability*1000) / 1000,
		Combined:      combined,
		Level:         e.level(combined),
		Decision:      e.decision(combined),
		Factors:       factors,
		Features:      vector,
		ModelVersion:  modelVersion,
		CreatedAt:     time.Now().UTC(),
	}

	e.recordTransaction(tx.SenderID)
	return score
}

func (e *Engine) level(score float64) Level {
	high := (e.blockThreshold + e.reviewThreshold) / 2
	switch {
	case score >= e.blockThreshold:
		return LevelCritical
	case score >= high:
		return LevelHigh
	case score >= e.reviewThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func (e *Engine) decision(score float64) Decision {
	switch {
	case score >= e.blockThreshold:
		return DecisionBlock
	case score >= e.reviewThreshold:
		return DecisionReview
	default:
		return DecisionAllow
	}
}

func (e *Engine) isBlacklisted(ctx context.Context, identifier string) bool {
	if e.trust == nil || identifier == "" {
		return false
	}
	listed, err := e.trust.IsBlacklisted(ctx, identifier)
	return err == nil && listed
}

func (e *Engine) matchesThreatPattern(ctx context.Context, identifier string) bool {
	if e.trust == nil || identifier == "" {
		return false
	}
	patterns, err := e.trust.ThreatPatterns(ctx)
	if err != nil {
		return false
	}
	for _, p := range patterns {
		if p != "" && strings.HasPrefix(identifier, p) {
			return true
		}
	}
	return false
}

// velocityFactor maps the sender's recent transaction count onto [0, 1].
// velocityCeiling transactions in the window saturate the factor.
func (e *Engine) velocityFactor(senderID string) float64 {
	w := e.getWindow(senderID)
	w.mu.Lock()
	defer w.mu.Unlock()
	e.pruneLocked(w)
	return clamp01(float64(len(w.stamp)+1) / velocityCeiling)
}

// recordTransaction appends the current transaction to the sender's window.
func (e *Engine) recordTransaction(senderID string) {
	w := e.getWindow(senderID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamp = append(w.stamp, time.Now())
	e.pruneLocked(w)
}

func (e *Engine) getWindow(senderID string) *senderWindow {
	v, _ := e.windows.LoadOrStore(senderID, &senderWindow{})
	return v.(*senderWindow)
}

// pruneLocked drops expired entries and caps the window (caller holds lock).
func (e *Engine) pruneLocked(w *senderWindow) {
	cutoff := time.Now().Add(-windowDuration)
	start := 0
	for start < len(w.stamp) && w.stamp[start].Before(cutoff) {
		start++
	}
	if start > 0 {
		w.stamp = w.stamp[start:]
	}
	if len(w.stamp) > maxWindowSize {
		w.stamp = w.stamp[len(w.stamp)-maxWindowSize:]
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
