package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists trained models in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed model store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the models table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			id          VARCHAR(36) PRIMARY KEY,
			version     BIGINT NOT NULL,
			weights     JSONB NOT NULL,
			trained_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_models_version
			ON models (version DESC);
	`)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, w *Weights) error {
	valuesJSON, err := json.Marshal(w.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (id, version, weights, trained_at)
		VALUES ($1, $2, $3, $4)
	`, w.ID, w.Version, valuesJSON, w.TrainedAt)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadLatest(ctx context.Context) (*Weights, error) {
	var w Weights
	var valuesJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, version, weights, trained_at
		FROM models
		ORDER BY version DESC, trained_at DESC
		LIMIT 1
	`).Scan(&w.ID, &w.Version, &valuesJSON, &w.TrainedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest model: %w", err)
	}

	if err := json.Unmarshal(valuesJSON, &w.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &w, nil
}
