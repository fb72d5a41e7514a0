package notification

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket bounding outbound notification volume so
// a misbehaving camera cannot flood external channels.
type RateLimiter struct {
	rate       int // tokens per interval
	interval   time.Duration
	tokens     int
	maxTokens  int
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter allowing perMinute sustained sends
// with bursts up to burst. Non-positive arguments fall back to defaults.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		rate:       perMinute,
		interval:   time.Minute,
		tokens:     burst,
		maxTokens:  burst,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	tokensToAdd := int(float64(rl.rate) * (elapsed.Seconds() / rl.interval.Seconds()))
	if tokensToAdd > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+tokensToAdd)
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
