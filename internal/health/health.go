// Package health provides a registry of named subsystem health checkers
// plus ready-made checkers for the service's dependencies.
package health

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/verdict-labs/verdict/internal/cache"
	"github.com/verdict-labs/verdict/internal/model"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// Database returns a checker that pings the database.
func Database(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "database", Healthy: true}
	}
}

// Cache returns a checker that exercises the cache with a probe key.
func Cache(c cache.Cache) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.Set(ctx, "health:probe", time.Now().Unix(), 10*time.Second); err != nil {
			return Status{Name: "cache", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "cache", Healthy: true}
	}
}

// Model returns a checker reporting whether a trained model is serving.
// A missing model is reported as healthy with a detail: the scorer degrades
// to neutral probabilities rather than failing.
func Model(p *model.Provider) Checker {
	return func(ctx context.Context) Status {
		w, err := p.Current(ctx)
		if model.IsNoModel(err) {
			return Status{Name: "model", Healthy: true, Detail: "no model trained, scoring neutral"}
		}
		if err != nil {
			return Status{Name: "model", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "model", Healthy: true, Detail: w.ID}
	}
}
