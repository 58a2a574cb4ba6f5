// Package ratelimit throttles outbound RPC calls per module, keyed so one noisy module never
// starves another's share of the outbound connection pool.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-key token bucket.
type Limiter interface {
	Allow(key string) bool
	Wait(key string) time.Duration
}

// TokenBucketLimiter implements Limiter using golang.org/x/time/rate, one
// bucket per module, created lazily on first use.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewTokenBucketLimiter creates a limiter admitting r calls/sec per key with
// burst b.
func NewTokenBucketLimiter(r float64, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

func (l *TokenBucketLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether key may proceed right now.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

// Wait returns how long the caller must back off before key is allowed
// again, or zero if it's already allowed. It never blocks the caller
// itself — the Scheduler decides what to do with the delay.
func (l *TokenBucketLimiter) Wait(key string) time.Duration {
	r := l.limiterFor(key).Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
	}
	return delay
}
