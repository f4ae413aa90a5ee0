package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/verdict-labs/verdict/internal/metrics"
)

const defaultJanitorInterval = time.Minute

type memoryItem struct {
	data      []byte // JSON-encoded value; nil for counters
	counter   int64
	expiresAt time.Time
}

func (it *memoryItem) expired(now time.Time) bool {
	return now.After(it.expiresAt)
}

// Memory is an in-process Cache. Safe for concurrent use; expired entries
// are dropped lazily on read and swept by a janitor goroutine.
type Memory struct {
	mu    sync.Mutex
	items map[string]*memoryItem
	stop  chan struct{}
}

// NewMemory creates an in-process cache and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		items: make(map[string]*memoryItem),
		stop:  make(chan struct{}),
	}
	go m.janitor(defaultJanitorInterval)
	return m
}

// Stop terminates the janitor goroutine.
func (m *Memory) Stop() {
	close(m.stop)
}

func (m *Memory) Get(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	it, ok := m.items[key]
	if ok && it.expired(time.Now()) {
		delete(m.items, key)
		ok = false
	}
	var data []byte
	if ok {
		data = it.data
	}
	m.mu.Unlock()

	if !ok || data == nil {
		metrics.CacheOpsTotal.WithLabelValues(category(key), "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	metrics.CacheOpsTotal.WithLabelValues(category(key), "hit").Inc()
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.items[key] = &memoryItem{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) InvalidatePattern(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok || it.expired(now) {
		m.items[key] = &memoryItem{
			counter:   1,
			expiresAt: now.Add(ttl),
		}
		return 1, nil
	}

	it.counter++
	return it.counter, nil
}

// janitor sweeps expired entries so counters and one-shot keys don't
// accumulate between reads.
func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, it := range m.items {
				if it.expired(now) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// category maps a cache key to its metrics label (first two segments).
func category(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		if j := strings.Index(key[i+1:], ":"); j > 0 {
			return key[:i+1+j]
		}
		return key
	}
	return "other"
}
