package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int64
	resetAt time.Time
}

// Memory keeps buckets in process memory. Nothing is evicted unless Sweep is
// called, so key cardinality must stay bounded (fine for a single personal
// site, not for a high-traffic service).
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucket
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, buckets: map[string]*bucket{}}
}

// NewMemoryWithClock is NewMemory with an injected clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Memory) Consume(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	return m.ConsumeAt(key, limit, window, m.now()), nil
}

func (m *Memory) ConsumeAt(key string, limit int, window time.Duration, now time.Time) Result {
	key = normalizeKey(key)
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.buckets[key]
	if !ok || !cur.resetAt.After(now) {
		next := &bucket{count: 1, resetAt: now.Add(window)}
		m.buckets[key] = next
		return Result{Allowed: true, Remaining: remaining(limit, next.count), ResetAt: next.resetAt}
	}
	cur.count++
	return Result{
		Allowed:   cur.count <= int64(limit),
		Remaining: remaining(limit, cur.count),
		ResetAt:   cur.resetAt,
	}
}

// Sweep drops buckets whose window has closed and returns how many were
// removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, b := range m.buckets {
		if !b.resetAt.After(now) {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
