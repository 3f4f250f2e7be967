package security

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket allowing rate operations per second with
// bursts of up to rate.
type RateLimiter struct {
	mu sync.Mutex

	rate       int
	tokens     int
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter creates a limiter. A non-positive rate allows everything.
func NewRateLimiter(ratePerSecond int) *RateLimiter {
	rl := &RateLimiter{rate: ratePerSecond, now: time.Now}
	if ratePerSecond > 0 {
		rl.tokens = ratePerSecond
		rl.lastRefill = rl.now()
	}
	return rl
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.rate <= 0 {
		return true
	}

	now := rl.now()
	if add := int(now.Sub(rl.lastRefill).Seconds() * float64(rl.rate)); add > 0 {
		rl.tokens = min(rl.tokens+add, rl.rate)
		rl.lastRefill = now
	}
	if rl.tokens <= 0 {
		return false
	}
	rl.tokens--
	return true
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.rate
	rl.lastRefill = rl.now()
}
