//go:build integration

package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/testutil"
)

func TestPostgresBlacklistLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	listed, err := store.IsBlacklisted(ctx, "acct_mule_1")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, store.AddToBlacklist(ctx, "acct_mule_1", "confirmed mule account"))
	listed, err = store.IsBlacklisted(ctx, "acct_mule_1")
	require.NoError(t, err)
	assert.True(t, listed)

	// Re-adding the same identifier updates the reason instead of failing.
	require.NoError(t, store.AddToBlacklist(ctx, "acct_mule_1", "second report"))

	require.NoError(t, store.RemoveFromBlacklist(ctx, "acct_mule_1"))
	listed, err = store.IsBlacklisted(ctx, "acct_mule_1")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestPostgresTrustScoreUpsert(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.TrustScore(ctx, "acct_unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetTrustScore(ctx, "acct_good", 0.8))
	score, err := store.TrustScore(ctx, "acct_good")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)

	require.NoError(t, store.SetTrustScore(ctx, "acct_good", 0.2))
	score, err = store.TrustScore(ctx, "acct_good")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, score, 1e-9)
}

func TestPostgresThreatPatternsSingleton(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	patterns, err := store.ThreatPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, patterns)

	require.NoError(t, store.SetThreatPatterns(ctx, []string{"mule", "smurf"}))
	patterns, err = store.ThreatPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mule", "smurf"}, patterns)

	// The singleton row is replaced wholesale, not appended to.
	require.NoError(t, store.SetThreatPatterns(ctx, []string{"laundering"}))
	patterns, err = store.ThreatPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"laundering"}, patterns)
}
