package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/cache"
)

func TestTrustScoreNeutralForUnknown(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)

	score, err := svc.TrustScore(context.Background(), "acct_unknown")
	require.NoError(t, err)
	assert.Equal(t, NeutralScore, score)
}

func TestTrustScoreReadThrough(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := cache.NewMemory()
	defer c.Stop()
	svc := NewService(store, c)

	require.NoError(t, store.SetTrustScore(ctx, "acct_1", 0.8))

	score, err := svc.TrustScore(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, score)

	// Cached value survives a direct store change until invalidated.
	require.NoError(t, store.SetTrustScore(ctx, "acct_1", 0.2))
	score, err = svc.TrustScore(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, score)

	require.NoError(t, svc.SetScore(ctx, "acct_1", 0.3))
	score, err = svc.TrustScore(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 0.3, score)
}

func TestBlacklistInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	defer c.Stop()
	svc := NewService(NewMemoryStore(), c)

	listed, err := svc.IsBlacklisted(ctx, "acct_bad")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, svc.Blacklist(ctx, "acct_bad", "chargeback ring"))

	listed, err = svc.IsBlacklisted(ctx, "acct_bad")
	require.NoError(t, err)
	assert.True(t, listed)

	require.NoError(t, svc.Unblacklist(ctx, "acct_bad"))

	listed, err = svc.IsBlacklisted(ctx, "acct_bad")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestReplacePatterns(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	defer c.Stop()
	svc := NewService(NewMemoryStore(), c)

	patterns, err := svc.ThreatPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, patterns)

	require.NoError(t, svc.ReplacePatterns(ctx, []string{"mule_", "synthetic_"}))

	patterns, err = svc.ThreatPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mule_", "synthetic_"}, patterns)
}
