package partner

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Partner
	byHash map[string]*Partner
}

// NewMemoryStore creates an in-memory partner store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Partner),
		byHash: make(map[string]*Partner),
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.byID[p.ID] = &cp
	s.byHash[p.APIKeyHash] = &cp
	return nil
}

func (s *MemoryStore) GetByKeyHash(ctx context.Context, hash string) (*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byHash[hash]
	if !ok {
		return nil, ErrPartnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPartnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[p.ID]
	if !ok {
		return ErrPartnerNotFound
	}

	delete(s.byHash, existing.APIKeyHash)
	cp := *p
	s.byID[p.ID] = &cp
	s.byHash[p.APIKeyHash] = &cp
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Partner, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}
