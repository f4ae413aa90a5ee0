package partner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists partners in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed partner store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the partners table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS partners (
			id            VARCHAR(36) PRIMARY KEY,
			name          VARCHAR(255) NOT NULL,
			api_key_hash  VARCHAR(64) NOT NULL UNIQUE,
			tier          VARCHAR(20) NOT NULL DEFAULT 'free',
			status        VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_partners_key_hash
			ON partners (api_key_hash);
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, p *Partner) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partners (id, name, api_key_hash, tier, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.APIKeyHash, string(p.Tier), string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByKeyHash(ctx context.Context, hash string) (*Partner, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, tier, status, created_at, updated_at
		FROM partners WHERE api_key_hash = $1
	`, hash))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Partner, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, tier, status, created_at, updated_at
		FROM partners WHERE id = $1
	`, id))
}

func (s *PostgresStore) Update(ctx context.Context, p *Partner) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE partners
		SET name = $2, api_key_hash = $3, tier = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.APIKeyHash, string(p.Tier), string(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update partner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Partner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, tier, status, created_at, updated_at
		FROM partners ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Partner
	for rows.Next() {
		var p Partner
		var tier, status string
		if err := rows.Scan(&p.ID, &p.Name, &p.APIKeyHash, &tier, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			continue
		}
		p.Tier = Tier(tier)
		p.Status = Status(status)
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Partner, error) {
	var p Partner
	var tier, status string
	err := row.Scan(&p.ID, &p.Name, &p.APIKeyHash, &tier, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	p.Tier = Tier(tier)
	p.Status = Status(status)
	return &p, nil
}
