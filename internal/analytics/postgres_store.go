package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists request logs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an analytics store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the request_logs table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS request_logs (
			id TEXT PRIMARY KEY,
			partner_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			status INT NOT NULL,
			decision TEXT NOT NULL DEFAULT '',
			latency_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_request_logs_partner_created
			ON request_logs(partner_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate analytics: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry *RequestLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_logs (id, partner_id, endpoint, method, status, decision, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.PartnerID, entry.Endpoint, entry.Method,
		entry.Status, entry.Decision, entry.LatencyMs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Summarize(ctx context.Context, partnerID string, since time.Time) (*Summary, error) {
	out := &Summary{PartnerID: partnerID, Since: since}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status <> 429 AND decision = 'allow'),
			COUNT(*) FILTER (WHERE status <> 429 AND decision = 'review'),
			COUNT(*) FILTER (WHERE status <> 429 AND decision = 'block'),
			COUNT(*) FILTER (WHERE status = 429),
			COALESCE(AVG(latency_ms), 0)
		FROM request_logs
		WHERE partner_id = $1 AND created_at >= $2`,
		partnerID, since,
	).Scan(&out.TotalRequests, &out.Allowed, &out.Reviewed, &out.Blocked,
		&out.RateLimited, &out.AvgLatencyMs)
	if err != nil {
		return nil, fmt.Errorf("summarize request logs: %w", err)
	}
	return out, nil
}
