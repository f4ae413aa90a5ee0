package analytics

import (
	"context"
	"sync"
	"time"
)

// maxMemoryLogs bounds the in-memory log buffer.
const maxMemoryLogs = 100000

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu   sync.RWMutex
	logs []RequestLog
}

// NewMemoryStore creates an in-memory analytics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry *RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	if len(s.logs) > maxMemoryLogs {
		s.logs = s.logs[len(s.logs)-maxMemoryLogs:]
	}
	return nil
}

func (s *MemoryStore) Summarize(ctx context.Context, partnerID string, since time.Time) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Summary{PartnerID: partnerID, Since: since}
	var totalLatency int64
	for i := range s.logs {
		log := &s.logs[i]
		if log.PartnerID != partnerID || log.CreatedAt.Before(since) {
			continue
		}
		out.TotalRequests++
		totalLatency += log.LatencyMs
		switch {
		case log.Status == 429:
			out.RateLimited++
		case log.Decision == "allow":
			out.Allowed++
		case log.Decision == "review":
			out.Reviewed++
		case log.Decision == "block":
			out.Blocked++
		}
	}
	if out.TotalRequests > 0 {
		out.AvgLatencyMs = float64(totalLatency) / float64(out.TotalRequests)
	}
	return out, nil
}
