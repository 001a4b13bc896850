package session

import (
	"sync"
	"time"
)

// RateLimiter is a per-session sliding window counter: a fixed cap of
// frames per 60s window, reset wholesale once the window has elapsed
// (§4.7), grounded on the pack's per-key count+reset bucket idiom.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
}

// NewRateLimiter builds a RateLimiter allowing up to limit frames per
// window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, windowStart: time.Now()}
}

// Allow reports whether one more frame may be accepted right now, and
// records it if so.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.windowStart) >= r.window {
		r.count = 0
		r.windowStart = now
	}
	if r.count >= r.limit {
		return false
	}
	r.count++
	return true
}

// ResetAt returns the time the current window closes, i.e. when the count
// next resets to zero.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windowStart.Add(r.window)
}
