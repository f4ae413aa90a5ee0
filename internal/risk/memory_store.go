package risk

import (
	"context"
	"sync"

	"github.com/verdict-labs/verdict/internal/features"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]*Score
	byPartner map[string][]*Score
}

// NewMemoryStore creates an in-memory score store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*Score),
		byPartner: make(map[string][]*Score),
	}
}

func (s *MemoryStore) Record(ctx context.Context, score *Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyScore(score)
	s.byID[c.ID] = c
	s.byPartner[c.PartnerID] = append(s.byPartner[c.PartnerID], c)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.byID[id]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return copyScore(score), nil
}

func (s *MemoryStore) ListByPartner(ctx context.Context, partnerID string, limit int) ([]*Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byPartner[partnerID]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	// Most recent first.
	result := make([]*Score, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		result = append(result, copyScore(all[i]))
	}
	return result, nil
}

func copyScore(score *Score) *Score {
	c := *score
	c.Factors = make(map[string]float64, len(score.Factors))
	for k, v := range score.Factors {
		c.Factors[k] = v
	}
	c.Features = append(features.Vector(nil), score.Features...)
	return &c
}
