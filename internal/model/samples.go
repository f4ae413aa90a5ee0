package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// SampleStore is a SampleSource that also accepts new labeled samples as
// partners report transaction outcomes.
type SampleStore interface {
	SampleSource
	// Add records one labeled sample. Re-labeling a transaction replaces
	// its previous label.
	Add(ctx context.Context, sample TrainingSample) error
}

// MemorySampleStore is an in-memory SampleStore for demo/test use.
// Samples are served in insertion order so training stays reproducible.
type MemorySampleStore struct {
	mu      sync.RWMutex
	order   []string
	samples map[string]TrainingSample
}

// NewMemorySampleStore creates an empty in-memory sample store.
func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{samples: make(map[string]TrainingSample)}
}

func (s *MemorySampleStore) Add(ctx context.Context, sample TrainingSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[sample.TransactionID]; !ok {
		s.order = append(s.order, sample.TransactionID)
	}
	s.samples[sample.TransactionID] = sample
	return nil
}

func (s *MemorySampleStore) CountLabeled(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples), nil
}

func (s *MemorySampleStore) LoadSamples(ctx context.Context, limit int) ([]TrainingSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]TrainingSample, 0, n)
	for _, id := range s.order[:n] {
		out = append(out, s.samples[id])
	}
	return out, nil
}

// PostgresSampleStore persists labeled samples in PostgreSQL.
type PostgresSampleStore struct {
	db *sql.DB
}

// NewPostgresSampleStore creates a sample store backed by the given database.
func NewPostgresSampleStore(db *sql.DB) *PostgresSampleStore {
	return &PostgresSampleStore{db: db}
}

// Migrate creates the training_samples table if it doesn't exist.
func (s *PostgresSampleStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_samples (
			transaction_id TEXT PRIMARY KEY,
			features JSONB NOT NULL,
			label SMALLINT NOT NULL CHECK (label IN (0, 1)),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate samples: %w", err)
	}
	return nil
}

func (s *PostgresSampleStore) Add(ctx context.Context, sample TrainingSample) error {
	featuresJSON, err := json.Marshal(sample.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO training_samples (transaction_id, features, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id) DO UPDATE SET features = $2, label = $3`,
		sample.TransactionID, featuresJSON, sample.Label)
	if err != nil {
		return fmt.Errorf("add sample: %w", err)
	}
	return nil
}

func (s *PostgresSampleStore) CountLabeled(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_samples`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

func (s *PostgresSampleStore) LoadSamples(ctx context.Context, limit int) ([]TrainingSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, features, label
		FROM training_samples
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	var out []TrainingSample
	for rows.Next() {
		var (
			sample       TrainingSample
			featuresJSON []byte
		)
		if err := rows.Scan(&sample.TransactionID, &featuresJSON, &sample.Label); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if err := json.Unmarshal(featuresJSON, &sample.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
