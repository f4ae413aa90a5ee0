package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/trust"
)

func newTestEngine(t *testing.T) (*Engine, *trust.Service) {
	t.Helper()
	svc := trust.NewService(trust.NewMemoryStore(), nil)
	return NewEngine(svc), svc
}

func testTx(id, sender, recipient string) *features.Transaction {
	return &features.Transaction{
		ID:          id,
		Amount:      100,
		SenderID:    sender,
		RecipientID: recipient,
		Channel:     features.ChannelCard,
		Timestamp:   time.Now().UTC(),
	}
}

func TestEvaluateCleanTransactionAllows(t *testing.T) {
	e, _ := newTestEngine(t)

	score := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_a", "acct_b"), nil, 0.1, 42)

	assert.Equal(t, DecisionAllow, score.Decision)
	assert.Equal(t, LevelLow, score.Level)
	assert.Equal(t, int64(42), score.ModelVersion)
	assert.Equal(t, "ptr_1", score.PartnerID)
	assert.Equal(t, "tx_1", score.TransactionID)
	assert.Equal(t, 0.1, score.Factors["model_probability"])
	assert.NotEmpty(t, score.ID)
}

func TestEvaluateBlacklistedSenderBlocks(t *testing.T) {
	e, svc := newTestEngine(t)
	require.NoError(t, svc.Blacklist(context.Background(), "acct_bad", "fraud ring"))

	score := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_bad", "acct_b"), nil, 0.0, 0)

	assert.Equal(t, DecisionBlock, score.Decision)
	assert.Equal(t, LevelCritical, score.Level)
	assert.Equal(t, 1.0, score.Factors["sender_blacklisted"])
	assert.GreaterOrEqual(t, score.Combined, DefaultBlockThreshold)
}

func TestEvaluateBlacklistedRecipientBlocks(t *testing.T) {
	e, svc := newTestEngine(t)
	require.NoError(t, svc.Blacklist(context.Background(), "acct_mule", "mule account"))

	score := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_a", "acct_mule"), nil, 0.0, 0)

	assert.Equal(t, DecisionBlock, score.Decision)
	assert.Equal(t, 1.0, score.Factors["recipient_blacklisted"])
}

func TestEvaluateLowTrustRaisesScore(t *testing.T) {
	e, svc := newTestEngine(t)
	require.NoError(t, svc.SetScore(context.Background(), "acct_shady", 0.1))

	clean := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_a", "acct_b"), nil, 0.5, 0)
	shady := e.Evaluate(context.Background(), "ptr_1", testTx("tx_2", "acct_shady", "acct_b"), nil, 0.5, 0)

	assert.Greater(t, shady.Combined, clean.Combined)
	assert.InDelta(t, 0.8, shady.Factors["sender_trust"], 1e-9)
}

func TestEvaluateThreatPatternMatch(t *testing.T) {
	e, svc := newTestEngine(t)
	require.NoError(t, svc.ReplacePatterns(context.Background(), []string{"mule_"}))

	score := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_a", "mule_77"), nil, 0.0, 0)

	assert.Equal(t, threatPatternWeight, score.Factors["threat_pattern"])
}

func TestEvaluateVelocitySaturates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < velocityCeiling+5; i++ {
		e.Evaluate(ctx, "ptr_1", testTx("tx_v", "acct_rapid", "acct_b"), nil, 0.0, 0)
	}

	score := e.Evaluate(ctx, "ptr_1", testTx("tx_final", "acct_rapid", "acct_b"), nil, 0.0, 0)
	assert.Equal(t, 1.0, score.Factors["velocity"])
}

func TestLevelBoundaries(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, LevelLow, e.level(0.3))
	assert.Equal(t, LevelMedium, e.level(0.6))
	assert.Equal(t, LevelHigh, e.level(0.75))
	assert.Equal(t, LevelCritical, e.level(0.9))
}

func TestScoreRoundedToThreeDecimals(t *testing.T) {
	e, _ := newTestEngine(t)

	score := e.Evaluate(context.Background(), "ptr_1", testTx("tx_1", "acct_a", "acct_b"), nil, 0.123456, 0)

	assert.Equal(t, 0.123, score.Probability)
	assert.InDelta(t, score.Combined, float64(int(score.Combined*1000))/1000, 1e-9)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	e, _ := newTestEngine(t)
	s1 := e.Evaluate(ctx, "ptr_1", testTx("tx_1", "acct_a", "acct_b"), nil, 0.2, 1)
	s2 := e.Evaluate(ctx, "ptr_1", testTx("tx_2", "acct_a", "acct_b"), nil, 0.4, 1)
	require.NoError(t, store.Record(ctx, s1))
	require.NoError(t, store.Record(ctx, s2))

	got, err := store.Get(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.TransactionID, got.TransactionID)

	_, err = store.Get(ctx, "risk_missing")
	assert.ErrorIs(t, err, ErrScoreNotFound)

	list, err := store.ListByPartner(ctx, "ptr_1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, s2.ID, list[0].ID) // most recent first
}
