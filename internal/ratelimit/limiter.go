// Package ratelimit provides sliding window limiters keyed by an arbitrary
// string, such as a registration source address or a connection id.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config describes a window: at most Limit events per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// MemoryLimiter is an in-process sliding window limiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	events map[string][]time.Time
}

// NewMemoryLimiter creates a limiter backed by a map of timestamps.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:    cfg,
		now:    time.Now,
		events: make(map[string][]time.Time),
	}
}

// WithClock swaps the time source, used by tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow records an event for key if the window has room.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.cfg.Limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	recent := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.cfg.Limit {
		l.events[key] = recent
		return false, nil
	}
	l.events[key] = append(recent, now)
	return true, nil
}

// Forget drops all recorded events for key.
func (l *MemoryLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.events, key)
	l.mu.Unlock()
}
