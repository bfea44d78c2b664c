package notify

import (
	"sync"
	"time"
)

// RateLimiter is a per-key token bucket
type RateLimiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	maxTokens    int
	refillPeriod time.Duration
	now          func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter allows maxRequests per key, refilling one token each period
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*bucket),
		maxTokens:    maxRequests,
		refillPeriod: period,
		now:          time.Now,
	}
}

// Allow takes a token for key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed >= rl.refillPeriod {
		periods := int(elapsed / rl.refillPeriod)
		b.tokens = min(b.tokens+periods, rl.maxTokens)
		b.lastRefill = b.lastRefill.Add(time.Duration(periods) * rl.refillPeriod)
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Reset forgets key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}
