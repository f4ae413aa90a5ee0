package partner

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/verdict-labs/verdict/internal/cache"
	"github.com/verdict-labs/verdict/internal/idgen"
)

// Manager handles partner provisioning and API key authentication.
type Manager struct {
	store Store
	cache cache.Cache
}

// NewManager creates a partner manager. A nil cache disables config caching.
func NewManager(store Store, c cache.Cache) *Manager {
	return &Manager{store: store, cache: c}
}

// Provision creates a partner on the given tier and returns the raw API key.
// The raw key is shown exactly once; only its hash is stored.
func (m *Manager) Provision(ctx context.Context, name string, tier Tier) (rawKey string, p *Partner, err error) {
	if !ValidTier(tier) {
		tier = TierFree
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	rawKey = "vk_" + hex.EncodeToString(b)

	now := time.Now().UTC()
	p = &Partner{
		ID:         idgen.WithPrefix("ptr_"),
		Name:       name,
		APIKeyHash: hashKey(rawKey),
		Tier:       tier,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.store.Create(ctx, p); err != nil {
		return "", nil, err
	}
	return rawKey, p, nil
}

// Authenticate resolves a raw API key to its partner.
// Partner config is cached by key hash; a cache miss or cache error falls
// through to the store of record.
func (m *Manager) Authenticate(ctx context.Context, rawKey string) (*Partner, error) {
	rawKey = strings.TrimPrefix(strings.TrimSpace(rawKey), "Bearer ")
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrNoAPIKey
	}
	if !strings.HasPrefix(rawKey, "vk_") {
		return nil, ErrInvalidAPIKey
	}

	hash := hashKey(rawKey)

	if m.cache != nil {
		var cached Partner
		if hit, err := m.cache.Get(ctx, cache.PartnerKey(hash), &cached); err == nil && hit && cached.ID != "" {
			return m.checkStatus(&cached)
		}
	}

	p, err := m.store.GetByKeyHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidAPIKey
	}

	if m.cache != nil {
		_ = m.cache.Set(ctx, cache.PartnerKey(hash), p, cache.PartnerConfigTTL)
	}
	return m.checkStatus(p)
}

// ChangeTier moves a partner to a new tier and drops its cached config so
// the new budget applies on the next request.
func (m *Manager) ChangeTier(ctx context.Context, id string, tier Tier) (*Partner, error) {
	if !ValidTier(tier) {
		return nil, ErrInvalidTier
	}

	p, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Tier = tier
	p.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, p); err != nil {
		return nil, err
	}

	if m.cache != nil {
		_ = m.cache.Invalidate(ctx, cache.PartnerKey(p.APIKeyHash))
	}
	return p, nil
}

func (m *Manager) checkStatus(p *Partner) (*Partner, error) {
	if p.Status == StatusSuspended {
		return nil, ErrSuspended
	}
	return p, nil
}

// hashKey returns the hex SHA256 of a raw API key.
func hashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
