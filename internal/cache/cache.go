// Package cache provides the TTL key/value cache used across the scoring
// pipeline.
//
// The cache is advisory: every consumer has a read-through fallback to its
// store of record, and nothing here is ever the sole source of truth. Two
// backends implement the same contract: an in-process map for single-node
// and test deployments, and Redis for shared deployments. Values round-trip
// through JSON on both backends so switching one for the other never changes
// behavior.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Category TTLs. Each class of decision input owns its expiration.
const (
	TrustScoreTTL    = 5 * time.Minute
	ThreatPatternTTL = time.Hour
	BlacklistTTL     = 30 * time.Minute
	PartnerConfigTTL = 10 * time.Minute
	AnalyticsTTL     = 3 * time.Minute
	ModelTTL         = time.Minute
)

// Cache is the generic TTL cache contract.
//
// IncrWithTTL is the single atomic primitive the rate limiter builds on:
// increment-and-read with expiry set on first touch, so two concurrent
// callers can never both observe "under limit" for the same slot.
type Cache interface {
	// Get JSON-decodes the cached value into dest.
	// Returns false (and leaves dest untouched) on miss or expiry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Invalidate removes a single key. Removing a missing key is not an error.
	Invalidate(ctx context.Context, key string) error
	// InvalidatePattern removes all keys with the given prefix and
	// returns how many were removed.
	InvalidatePattern(ctx context.Context, prefix string) (int, error)
	// IncrWithTTL atomically increments the counter at key and returns the
	// new value. The expiry is set when the counter is created and is not
	// extended by later increments.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Key builders. Centralized so InvalidatePattern prefixes stay consistent.

// TrustScoreKey caches an identifier's trust score.
func TrustScoreKey(id string) string { return "trust:score:" + id }

// BlacklistKey caches an identifier's blacklist membership.
func BlacklistKey(id string) string { return "trust:blacklist:" + id }

// ThreatPatternsKey caches the full threat pattern set.
const ThreatPatternsKey = "trust:patterns"

// PartnerKey caches partner configuration by API key hash.
func PartnerKey(keyHash string) string { return "partner:config:" + keyHash }

// AnalyticsKey caches a partner's usage snapshot.
func AnalyticsKey(partnerID string) string { return "analytics:snapshot:" + partnerID }

// ModelKey caches the currently-serving model.
const ModelKey = "model:current"

// RateLimitKey identifies a caller's counter for one fixed window.
func RateLimitKey(callerKey string, windowStart int64) string {
	return "ratelimit:" + callerKey + ":" + strconv.FormatInt(windowStart, 10)
}
