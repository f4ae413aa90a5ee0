package trust

import (
	"context"
	"errors"

	"github.com/verdict-labs/verdict/internal/cache"
)

// Service is the cached read-through facade over a trust Store.
// All risk-engine reads come through here.
type Service struct {
	store Store
	cache cache.Cache
}

// NewService wraps a store with read-through caching.
// A nil cache disables caching entirely.
func NewService(store Store, c cache.Cache) *Service {
	return &Service{store: store, cache: c}
}

// IsBlacklisted reports blacklist membership, cached for the blacklist TTL.
func (s *Service) IsBlacklisted(ctx context.Context, identifier string) (bool, error) {
	if s.cache != nil {
		var hit bool
		if ok, err := s.cache.Get(ctx, cache.BlacklistKey(identifier), &hit); err == nil && ok {
			return hit, nil
		}
	}

	listed, err := s.store.IsBlacklisted(ctx, identifier)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cache.BlacklistKey(identifier), listed, cache.BlacklistTTL)
	}
	return listed, nil
}

// TrustScore returns the identifier's trust score, substituting NeutralScore
// for unknown identifiers so callers never special-case missing records.
func (s *Service) TrustScore(ctx context.Context, identifier string) (float64, error) {
	if s.cache != nil {
		var score float64
		if ok, err := s.cache.Get(ctx, cache.TrustScoreKey(identifier), &score); err == nil && ok {
			return score, nil
		}
	}

	score, err := s.store.TrustScore(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		score = NeutralScore
	} else if err != nil {
		return NeutralScore, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cache.TrustScoreKey(identifier), score, cache.TrustScoreTTL)
	}
	return score, nil
}

// ThreatPatterns returns the flagged identifier prefixes, cached for an hour.
func (s *Service) ThreatPatterns(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var patterns []string
		if ok, err := s.cache.Get(ctx, cache.ThreatPatternsKey, &patterns); err == nil && ok {
			return patterns, nil
		}
	}

	patterns, err := s.store.ThreatPatterns(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cache.ThreatPatternsKey, patterns, cache.ThreatPatternTTL)
	}
	return patterns, nil
}

// Blacklist adds an identifier and drops its cached membership.
func (s *Service) Blacklist(ctx context.Context, identifier, reason string) error {
	if err := s.store.AddToBlacklist(ctx, identifier, reason); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, cache.BlacklistKey(identifier))
	}
	return nil
}

// Unblacklist removes an identifier and drops its cached membership.
func (s *Service) Unblacklist(ctx context.Context, identifier string) error {
	if err := s.store.RemoveFromBlacklist(ctx, identifier); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, cache.BlacklistKey(identifier))
	}
	return nil
}

// SetScore writes a trust score and refreshes its cache entry.
func (s *Service) SetScore(ctx context.Context, identifier string, score float64) error {
	if err := s.store.SetTrustScore(ctx, identifier, score); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, cache.TrustScoreKey(identifier))
	}
	return nil
}

// ReplacePatterns replaces the threat pattern set and drops the cached copy.
func (s *Service) ReplacePatterns(ctx context.Context, patterns []string) error {
	if err := s.store.SetThreatPatterns(ctx, patterns); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, cache.ThreatPatternsKey)
	}
	return nil
}
