package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists scores in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed score store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the risk_scores table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_scores (
			id             VARCHAR(64) PRIMARY KEY,
			partner_id     VARCHAR(64) NOT NULL,
			transaction_id TEXT NOT NULL,
			probability    NUMERIC(4,3) NOT NULL CHECK (probability >= 0 AND probability <= 1),
			score          NUMERIC(4,3) NOT NULL CHECK (score >= 0 AND score <= 1),
			risk_level     VARCHAR(10) NOT NULL CHECK (risk_level IN ('low', 'medium', 'high', 'critical')),
			decision       VARCHAR(10) NOT NULL CHECK (decision IN ('allow', 'review', 'block')),
			factors        JSONB NOT NULL DEFAULT '{}',
			features       JSONB NOT NULL DEFAULT '[]',
			model_version  BIGINT NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_scores_partner
			ON risk_scores (partner_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_risk_scores_blocks
			ON risk_scores (created_at DESC) WHERE decision = 'block';
	`)
	if err != nil {
		return fmt.Errorf("migrate risk: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, score *Score) error {
	factorsJSON, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	featuresJSON, err := json.Marshal(score.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_scores (id, partner_id, transaction_id, probability, score, risk_level, decision, factors, features, model_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		score.ID, score.PartnerID, score.TransactionID,
		score.Probability, score.Combined,
		string(score.Level), string(score.Decision),
		factorsJSON, featuresJSON, score.ModelVersion, score.CreatedAt)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Score, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, partner_id, transaction_id, probability, score, risk_level, decision, factors, features, model_version, created_at
		FROM risk_scores WHERE id = $1`, id)

	score, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) ListByPartner(ctx context.Context, partnerID string, limit int) ([]*Score, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, transaction_id, probability, score, risk_level, decision, factors, features, model_version, created_at
		FROM risk_scores WHERE partner_id = $1
		ORDER BY created_at DESC LIMIT $2`, partnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var result []*Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		result = append(result, score)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*Score, error) {
	var (
		score        Score
		level        string
		decision     string
		factorsJSON  []byte
		featuresJSON []byte
	)
	err := row.Scan(&score.ID, &score.PartnerID, &score.TransactionID,
		&score.Probability, &score.Combined, &level, &decision,
		&factorsJSON, &featuresJSON, &score.ModelVersion, &score.CreatedAt)
	if err != nil {
		return nil, err
	}
	score.Level = Level(level)
	score.Decision = Decision(decision)
	if err := json.Unmarshal(factorsJSON, &score.Factors); err != nil {
		return nil, fmt.Errorf("unmarshal factors: %w", err)
	}
	if err := json.Unmarshal(featuresJSON, &score.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	return &score, nil
}
