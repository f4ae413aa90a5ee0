package model

import (
	"context"
	"errors"

	"github.com/verdict-labs/verdict/internal/cache"
)

// Provider serves the current model with a short-lived cache in front of the
// store. The cache is advisory: on any miss or cache error the store is
// consulted directly, and "no model yet" is reported as ErrNoModel exactly
// like the bare store would.
type Provider struct {
	store Store
	cache cache.Cache
}

// NewProvider wraps a model store with a cache. A nil cache disables caching.
func NewProvider(store Store, c cache.Cache) *Provider {
	return &Provider{store: store, cache: c}
}

// Current returns the highest-version model, or ErrNoModel.
func (p *Provider) Current(ctx context.Context) (*Weights, error) {
	if p.cache != nil {
		var w Weights
		if hit, err := p.cache.Get(ctx, cache.ModelKey, &w); err == nil && hit && len(w.Values) > 0 {
			return &w, nil
		}
	}

	w, err := p.store.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		_ = p.cache.Set(ctx, cache.ModelKey, w, cache.ModelTTL)
	}
	return w, nil
}

// Refresh drops the cached model so the next read sees a newly-saved version
// immediately instead of waiting out the TTL.
func (p *Provider) Refresh(ctx context.Context) {
	if p.cache != nil {
		_ = p.cache.Invalidate(ctx, cache.ModelKey)
	}
}

// IsNoModel reports whether err means "nothing trained yet".
func IsNoModel(err error) bool {
	return errors.Is(err, ErrNoModel)
}
