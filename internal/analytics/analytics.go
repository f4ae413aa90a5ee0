// Package analytics records per-partner request activity and serves
// usage summaries for the billing and dashboard endpoints.
package analytics

import (
	"context"
	"time"
)

// RequestLog is one recorded API request.
type RequestLog struct {
	ID        string    `json:"id"`
	PartnerID string    `json:"partnerId"`
	Endpoint  string    `json:"endpoint"`
	Method    string    `json:"method"`
	Status    int       `json:"status"`
	Decision  string    `json:"decision,omitempty"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary aggregates a partner's activity since a point in time.
type Summary struct {
	PartnerID     string    `json:"partnerId"`
	Since         time.Time `json:"since"`
	TotalRequests int64     `json:"totalRequests"`
	Allowed       int64     `json:"allowed"`
	Reviewed      int64     `json:"reviewed"`
	Blocked       int64     `json:"blocked"`
	RateLimited   int64     `json:"rateLimited"`
	AvgLatencyMs  float64   `json:"avgLatencyMs"`
}

// Store persists request logs.
type Store interface {
	Append(ctx context.Context, entry *RequestLog) error
	Summarize(ctx context.Context, partnerID string, since time.Time) (*Summary, error)
}
