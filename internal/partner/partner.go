// Package partner provides caller identity and plan tiers for the Verdict API.
//
// Every API caller is a partner holding an API key. The key is stored hashed;
// the tier on the partner record decides the rate-limit budget. Partner
// config lookups sit on the hot path of every verification, so reads go
// through the cache with the store of record as fallback.
package partner

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNoAPIKey        = errors.New("partner: API key required")
	ErrInvalidAPIKey   = errors.New("partner: invalid or revoked API key")
	ErrPartnerNotFound = errors.New("partner: not found")
	ErrSuspended       = errors.New("partner: account suspended")
	ErrInvalidTier     = errors.New("partner: unknown tier")
)

// Status represents a partner's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tier identifies the pricing tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierGrowth     Tier = "growth"
	TierEnterprise Tier = "enterprise"
)

// TierLimits is the hardcoded request budget per rate-limit window.
var TierLimits = map[Tier]int{
	TierFree:       100,
	TierStarter:    1000,
	TierGrowth:     10000,
	TierEnterprise: 100000,
}

// LimitForTier returns the per-window request budget for a tier.
// Unknown or missing tiers get the free budget.
func LimitForTier(t Tier) int {
	if limit, ok := TierLimits[t]; ok {
		return limit
	}
	return TierLimits[TierFree]
}

// ValidTier returns true if the tier name is recognised.
func ValidTier(t Tier) bool {
	_, ok := TierLimits[t]
	return ok
}

// Partner represents an organisation calling the verification API.
type Partner struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"` // SHA256 of the raw key; raw key is shown once
	Tier       Tier      `json:"tier"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Limit returns the partner's per-window request budget.
func (p *Partner) Limit() int {
	return LimitForTier(p.Tier)
}

// Store persists partner records.
type Store interface {
	Create(ctx context.Context, p *Partner) error
	GetByKeyHash(ctx context.Context, hash string) (*Partner, error)
	GetByID(ctx context.Context, id string) (*Partner, error)
	Update(ctx context.Context, p *Partner) error
	List(ctx context.Context) ([]*Partner, error)
}
