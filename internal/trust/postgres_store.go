package trust

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists trust data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a trust store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the trust tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blacklist (
			identifier TEXT PRIMARY KEY,
			reason TEXT NOT NULL DEFAULT '',
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS trust_scores (
			identifier TEXT PRIMARY KEY,
			score DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS threat_patterns (
			id INT PRIMARY KEY DEFAULT 1,
			patterns TEXT[] NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT threat_patterns_singleton CHECK (id = 1)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate trust: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsBlacklisted(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM blacklist WHERE identifier = $1)`, identifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) TrustScore(ctx context.Context, identifier string) (float64, error) {
	var score float64
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM trust_scores WHERE identifier = $1`, identifier,
	).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load trust score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) ThreatPatterns(ctx context.Context) ([]string, error) {
	var patterns pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT patterns FROM threat_patterns WHERE id = 1`,
	).Scan(&patterns)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load threat patterns: %w", err)
	}
	return []string(patterns), nil
}

func (s *PostgresStore) AddToBlacklist(ctx context.Context, identifier, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (identifier, reason, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identifier) DO UPDATE SET reason = $2, added_at = $3`,
		identifier, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add to blacklist: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveFromBlacklist(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blacklist WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("remove from blacklist: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetTrustScore(ctx context.Context, identifier string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_scores (identifier, score, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identifier) DO UPDATE SET score = $2, updated_at = NOW()`,
		identifier, score)
	if err != nil {
		return fmt.Errorf("set trust score: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetThreatPatterns(ctx context.Context, patterns []string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threat_patterns (id, patterns, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET patterns = $1, updated_at = NOW()`,
		pq.StringArray(patterns))
	if err != nil {
		return fmt.Errorf("set threat patterns: %w", err)
	}
	return nil
}
