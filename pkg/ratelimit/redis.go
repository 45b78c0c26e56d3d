package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments the counter and starts the window on the first
// hit. It returns {count, pttl}.
var consumeScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local t = redis.call('PTTL', KEYS[1])
if t < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  t = tonumber(ARGV[1])
end
return {c, t}
`)

// Redis shares buckets between instances. The counter key expires with the
// window, so an expired key is the "fresh bucket" case.
type Redis struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedis(client redis.Scripter, prefix string) *Redis {
	if prefix == "" {
		prefix = "journey:ratelimit:"
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	k := r.prefix + normalizeKey(key)
	raw, err := consumeScript.Run(ctx, r.client, []string{k}, window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit %q: %w", key, err)
	}
	if len(raw) != 2 {
		return Result{}, fmt.Errorf("redis rate limit %q: unexpected reply %v", key, raw)
	}
	count, ok1 := raw[0].(int64)
	ttl, ok2 := raw[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("redis rate limit %q: unexpected reply %v", key, raw)
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining(limit, count),
		ResetAt:   r.now().Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}

// NewRedisClient opens a client for addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}
