package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, counts what is
// left and records the new event only when it fits.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local counter_key = KEYS[2]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)
if count >= limit then
	return 0
end

local seq = redis.call('INCR', counter_key)
redis.call('ZADD', key, now, now .. ':' .. seq)
redis.call('PEXPIRE', key, window_ms)
redis.call('PEXPIRE', counter_key, window_ms)
return 1
`)

// RedisLimiter shares a sliding window across server instances.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedisLimiter wraps an existing client. The client is owned by the caller.
func NewRedisLimiter(client *redis.Client, cfg Config, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix}
}

// Allow runs the window script atomically on the server.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.cfg.Limit <= 0 {
		return true, nil
	}

	now := time.Now()
	redisKey := l.prefix + key
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKey, redisKey + ":seq"},
		now.UnixMilli(),
		now.Add(-l.cfg.Window).UnixMilli(),
		l.cfg.Limit,
		l.cfg.Window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit script: %w", err)
	}
	return res == 1, nil
}
