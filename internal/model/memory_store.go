package model

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	models []*Weights // append-only, insertion order
}

// NewMemoryStore creates an in-memory model store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, w *Weights) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	cp.Values = append([]float64(nil), w.Values...)
	s.models = append(s.models, &cp)
	return nil
}

func (s *MemoryStore) LoadLatest(ctx context.Context) (*Weights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Weights
	for _, m := range s.models {
		if latest == nil || m.Version > latest.Version {
			latest = m
		}
	}
	if latest == nil {
		return nil, ErrNoModel
	}

	cp := *latest
	cp.Values = append([]float64(nil), latest.Values...)
	return &cp, nil
}
