//go:build integration

package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/features"
	"github.com/verdict-labs/verdict/internal/testutil"
)

func pgScore(id, partnerID string, createdAt time.Time) *Score {
	vec := make(features.Vector, features.Count)
	vec[features.IdxAmount] = 125.50
	return &Score{
		ID:            id,
		PartnerID:     partnerID,
		TransactionID: "tx_" + id,
		Probability:   0.731,
		Combined:      0.562,
		Level:         LevelMedium,
		Decision:      DecisionReview,
		Factors:       map[string]float64{"model": 0.731, "velocity": 0.25},
		Features:      vec,
		ModelVersion:  42,
		CreatedAt:     createdAt,
	}
}

func TestPostgresScoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	in := pgScore("risk_pg_1", "ptr_a", now)
	require.NoError(t, store.Record(ctx, in))

	out, err := store.Get(ctx, "risk_pg_1")
	require.NoError(t, err)
	assert.Equal(t, in.TransactionID, out.TransactionID)
	assert.InDelta(t, in.Probability, out.Probability, 1e-9)
	assert.InDelta(t, in.Combined, out.Combined, 1e-9)
	assert.Equal(t, LevelMedium, out.Level)
	assert.Equal(t, DecisionReview, out.Decision)
	assert.InDelta(t, 0.25, out.Factors["velocity"], 1e-9)
	require.Len(t, out.Features, features.Count)
	assert.InDelta(t, 125.50, out.Features[features.IdxAmount], 1e-9)
	assert.Equal(t, int64(42), out.ModelVersion)
}

func TestPostgresScoreNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	_, err := store.Get(context.Background(), "risk_missing")
	assert.ErrorIs(t, err, ErrScoreNotFound)
}

func TestPostgresListByPartnerScopedAndOrdered(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Record(ctx, pgScore("risk_pg_old", "ptr_a", base.Add(-time.Hour))))
	require.NoError(t, store.Record(ctx, pgScore("risk_pg_new", "ptr_a", base)))
	require.NoError(t, store.Record(ctx, pgScore("risk_pg_other", "ptr_b", base)))

	scores, err := store.ListByPartner(ctx, "ptr_a", 10)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "risk_pg_new", scores[0].ID, "newest first")
	assert.Equal(t, "risk_pg_old", scores[1].ID)

	limited, err := store.ListByPartner(ctx, "ptr_a", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "risk_pg_new", limited[0].ID)
}
