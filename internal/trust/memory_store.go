package trust

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	blacklist map[string]BlacklistEntry
	scores    map[string]float64
	patterns  []string
}

// NewMemoryStore creates an in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blacklist: make(map[string]BlacklistEntry),
		scores:    make(map[string]float64),
	}
}

func (s *MemoryStore) IsBlacklisted(ctx context.Context, identifier string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[identifier]
	return ok, nil
}

func (s *MemoryStore) TrustScore(ctx context.Context, identifier string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[identifier]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (s *MemoryStore) ThreatPatterns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.patterns...), nil
}

func (s *MemoryStore) AddToBlacklist(ctx context.Context, identifier, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[identifier] = BlacklistEntry{
		Identifier: identifier,
		Reason:     reason,
		AddedAt:    time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) RemoveFromBlacklist(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklist, identifier)
	return nil
}

func (s *MemoryStore) SetTrustScore(ctx context.Context, identifier string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[identifier] = score
	return nil
}

func (s *MemoryStore) SetThreatPatterns(ctx context.Context, patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append([]string(nil), patterns...)
	return nil
}
