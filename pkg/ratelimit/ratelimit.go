// Package ratelimit implements a fixed-window counter keyed by client
// identity. Each key owns a bucket {count, resetAt}; the first request after
// resetAt opens a fresh window. A burst straddling a window boundary can
// therefore pass up to twice the limit.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the bucket resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type Limiter interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "anonymous"
	}
	return key
}

func remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}
