package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRedisLive(t *testing.T) {
	if os.Getenv("JOURNEY_INTEGRATION") != "1" {
		t.Skip("set JOURNEY_INTEGRATION=1 to run live integration")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("set REDIS_ADDR to run redis integration")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	r := NewRedis(client, "journey:test:")
	key := "live:" + time.Now().Format(time.RFC3339Nano)
	for i := 1; i <= 3; i++ {
		res, err := r.Consume(ctx, key, 3, 500*time.Millisecond)
		if err != nil || !res.Allowed {
			t.Fatalf("call %d: %+v %v", i, res, err)
		}
	}
	res, err := r.Consume(ctx, key, 3, 500*time.Millisecond)
	if err != nil || res.Allowed {
		t.Fatalf("expected 4th call throttled: %+v %v", res, err)
	}
	time.Sleep(600 * time.Millisecond)
	res, err = r.Consume(ctx, key, 3, 500*time.Millisecond)
	if err != nil || !res.Allowed || res.Remaining != 2 {
		t.Fatalf("expected fresh window: %+v %v", res, err)
	}
}
