package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterBlocksAfterLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewMemoryLimiter(Config{Limit: 5, Window: time.Minute}).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("attempt %d should pass: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Fatal("6th attempt must be limited")
	}
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatal("other keys have their own window")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("window should have slid past old attempts")
	}
}

func TestMemoryLimiterZeroLimitAllowsAll(t *testing.T) {
	l := NewMemoryLimiter(Config{})
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow(context.Background(), "k"); !ok {
			t.Fatal("zero limit means unlimited")
		}
	}
}

func TestMemoryLimiterForget(t *testing.T) {
	l := NewMemoryLimiter(Config{Limit: 1, Window: time.Hour})
	ctx := context.Background()
	_, _ = l.Allow(ctx, "conn")
	if ok, _ := l.Allow(ctx, "conn"); ok {
		t.Fatal("expected limit")
	}
	l.Forget("conn")
	if ok, _ := l.Allow(ctx, "conn"); !ok {
		t.Fatal("forget should reset the window")
	}
}

func TestRedisLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	prefix := fmt.Sprintf("test:wirechat:%d:", time.Now().UnixNano())
	defer client.Del(ctx, prefix+"src", prefix+"src:seq")

	l := NewRedisLimiter(client, Config{Limit: 5, Window: time.Minute}, prefix)
	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "src")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	ok, err := l.Allow(ctx, "src")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatal("6th attempt must be limited")
	}
}
