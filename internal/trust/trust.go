// Package trust serves the rule-based decision inputs: blacklist membership,
// identifier trust scores, and the shared threat pattern set.
//
// Reads go through the cache with per-category TTLs; the store of record is
// always consulted on a miss or cache failure, so the cache is never the
// sole source of truth for a listing.
package trust

import (
	"context"
	"errors"
	"time"
)

// NeutralScore is the trust score assumed for unknown identifiers.
const NeutralScore = 0.5

// ErrNotFound indicates the identifier has no explicit trust record.
var ErrNotFound = errors.New("trust: identifier not found")

// Store is the system of record for trust data.
type Store interface {
	IsBlacklisted(ctx context.Context, identifier string) (bool, error)
	// TrustScore returns the identifier's score in [0, 1],
	// or ErrNotFound when no record exists.
	TrustScore(ctx context.Context, identifier string) (float64, error)
	// ThreatPatterns returns identifier prefixes flagged by threat intel.
	ThreatPatterns(ctx context.Context) ([]string, error)

	AddToBlacklist(ctx context.Context, identifier, reason string) error
	RemoveFromBlacklist(ctx context.Context, identifier string) error
	SetTrustScore(ctx context.Context, identifier string, score float64) error
	SetThreatPatterns(ctx context.Context, patterns []string) error
}

// BlacklistEntry records why an identifier is blocked.
type BlacklistEntry struct {
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	AddedAt    time.Time `json:"addedAt"`
}
