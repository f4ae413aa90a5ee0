package cache

import (
	"context"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	t.Cleanup(m.Stop)
	return m
}

func TestMemoryRoundTrip(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	if err := m.Set(ctx, TrustScoreKey("acct_1"), payload{Name: "acct_1", Score: 0.8}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	hit, err := m.Get(ctx, TrustScoreKey("acct_1"), &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Fatal("expected hit immediately after set")
	}
	if got.Score != 0.8 || got.Name != "acct_1" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	var got string
	hit, err := m.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected miss after ttl elapsed")
	}
}

func TestMemoryInvalidate(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_ = m.Set(ctx, "k", 1, time.Minute)
	if err := m.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	var got int
	if hit, _ := m.Get(ctx, "k", &got); hit {
		t.Error("expected miss after invalidate")
	}

	// Invalidating a missing key is not an error.
	if err := m.Invalidate(ctx, "nope"); err != nil {
		t.Errorf("invalidate missing key: %v", err)
	}
}

func TestMemoryInvalidatePattern(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_ = m.Set(ctx, BlacklistKey("a"), true, time.Minute)
	_ = m.Set(ctx, BlacklistKey("b"), false, time.Minute)
	_ = m.Set(ctx, TrustScoreKey("a"), 0.5, time.Minute)

	removed, err := m.InvalidatePattern(ctx, "trust:blacklist:")
	if err != nil {
		t.Fatalf("invalidate pattern: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	var score float64
	if hit, _ := m.Get(ctx, TrustScoreKey("a"), &score); !hit {
		t.Error("unrelated key should survive pattern invalidation")
	}
}

func TestMemoryIncrWithTTL(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.IncrWithTTL(ctx, "ctr", 50*time.Millisecond)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != want {
			t.Errorf("counter = %d, want %d", n, want)
		}
	}

	// After expiry the counter restarts at 1.
	time.Sleep(70 * time.Millisecond)
	n, err := m.IncrWithTTL(ctx, "ctr", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("incr after expiry: %v", err)
	}
	if n != 1 {
		t.Errorf("counter after expiry = %d, want 1", n)
	}
}

func TestMemoryIncrConcurrent(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	const goroutines = 50
	done := make(chan int64, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			n, _ := m.IncrWithTTL(ctx, "ctr", time.Minute)
			done <- n
		}()
	}

	seen := make(map[int64]bool)
	for i := 0; i < goroutines; i++ {
		n := <-done
		if seen[n] {
			t.Fatalf("duplicate counter value %d — increment is not atomic", n)
		}
		seen[n] = true
	}
}
