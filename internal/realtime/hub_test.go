package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/logging"
	"github.com/verdict-labs/verdict/internal/risk"
)

func testEvent(partnerID, decision, level string, score float64) *DecisionEvent {
	return &DecisionEvent{
		RequestID: "risk_1",
		PartnerID: partnerID,
		Decision:  decision,
		RiskLevel: level,
		Score:     score,
		Timestamp: time.Now().UTC(),
	}
}

func TestShouldSendPartnerIsolation(t *testing.T) {
	h := NewHub(logging.New("error", "text"))
	client := &Client{partnerID: "ptr_1", sub: Subscription{All: true}}

	assert.True(t, h.shouldSend(client, testEvent("ptr_1", "allow", "low", 0.1)))
	assert.False(t, h.shouldSend(client, testEvent("ptr_2", "allow", "low", 0.1)))
}

func TestShouldSendFilters(t *testing.T) {
	h := NewHub(logging.New("error", "text"))

	blocked := &Client{partnerID: "ptr_1", sub: Subscription{Decisions: []string{"block"}}}
	assert.True(t, h.shouldSend(blocked, testEvent("ptr_1", "block", "critical", 0.95)))
	assert.False(t, h.shouldSend(blocked, testEvent("ptr_1", "allow", "low", 0.1)))

	highOnly := &Client{partnerID: "ptr_1", sub: Subscription{Levels: []string{"high", "critical"}}}
	assert.True(t, h.shouldSend(highOnly, testEvent("ptr_1", "review", "high", 0.8)))
	assert.False(t, h.shouldSend(highOnly, testEvent("ptr_1", "review", "medium", 0.65)))

	scored := &Client{partnerID: "ptr_1", sub: Subscription{MinScore: 0.5}}
	assert.True(t, h.shouldSend(scored, testEvent("ptr_1", "review", "medium", 0.6)))
	assert.False(t, h.shouldSend(scored, testEvent("ptr_1", "allow", "low", 0.2)))
}

func TestPublishScoreMapsFields(t *testing.T) {
	h := NewHub(logging.New("error", "text"))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	score := &risk.Score{
		ID:            "risk_abc",
		PartnerID:     "ptr_1",
		TransactionID: "tx_1",
		Probability:   0.42,
		Combined:      0.61,
		Level:         risk.LevelMedium,
		Decision:      risk.DecisionReview,
		ModelVersion:  7,
		CreatedAt:     time.Now().UTC(),
	}
	h.PublishScore(score)

	require.Eventually(t, func() bool {
		return h.totalEvents.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishDropsWhenSaturated(t *testing.T) {
	// No Run loop draining the channel, so the buffer fills and
	// further publishes are dropped instead of blocking.
	h := NewHub(logging.New("error", "text"))
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Publish(testEvent("ptr_1", "allow", "low", 0.1))
	}
	assert.Len(t, h.broadcast, cap(h.broadcast))
}
