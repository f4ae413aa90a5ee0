package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/verdict-labs/verdict/internal/cache"
	"github.com/verdict-labs/verdict/internal/idgen"
	"github.com/verdict-labs/verdict/internal/retry"
)

// usageWindow is how far back Usage summaries look.
const usageWindow = 24 * time.Hour

// Service records request activity and serves cached usage summaries.
type Service struct {
	store  Store
	cache  cache.Cache
	logger *slog.Logger
}

// NewService creates an analytics service. A nil cache disables
// summary caching; writes are unaffected.
func NewService(store Store, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: c, logger: logger}
}

// Record appends a request log entry asynchronously. Failures are retried
// with backoff and then logged; they never surface to the request path.
func (s *Service) Record(entry RequestLog) {
	if s == nil || s.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = idgen.WithPrefix("req_")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
			return s.store.Append(ctx, &entry)
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("request log append failed",
				"partner_id", entry.PartnerID,
				"endpoint", entry.Endpoint,
				"error", err)
		}
	}()
}

// Usage returns the partner's activity summary over the last 24 hours,
// cached for the analytics TTL.
func (s *Service) Usage(ctx context.Context, partnerID string) (*Summary, error) {
	if s.cache != nil {
		var cached Summary
		if ok, err := s.cache.Get(ctx, cache.AnalyticsKey(partnerID), &cached); err == nil && ok {
			return &cached, nil
		}
	}

	summary, err := s.store.Summarize(ctx, partnerID, time.Now().UTC().Add(-usageWindow))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cache.AnalyticsKey(partnerID), summary, cache.AnalyticsTTL)
	}
	return summary, nil
}
