package auth

import (
	"sync"
	"time"
)

type attemptRecord struct {
	count   int
	resetAt time.Time
}

// RateLimiter blocks a client after too many failed logins inside a window.
type RateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter allows maxAttempts failures per window, then blocks the
// client for block.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether key may try again, and if not, for how long it is
// blocked.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.attempts[key]
	now := r.now()
	if !ok || !now.Before(rec.resetAt) {
		return true, 0
	}
	if rec.count >= r.maxAttempts {
		return false, rec.resetAt.Sub(now)
	}
	return true, 0
}

// RecordFailure counts a failed attempt for key.
func (r *RateLimiter) RecordFailure(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec, ok := r.attempts[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = attemptRecord{resetAt: now.Add(r.window)}
	}
	rec.count++
	if rec.count == r.maxAttempts {
		rec.resetAt = now.Add(r.block)
	}
	r.attempts[key] = rec
}

// Reset forgets key after a successful login.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	delete(r.attempts, key)
	r.mu.Unlock()
}

// Cleanup drops expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, rec := range r.attempts {
		if !now.Before(rec.resetAt) {
			delete(r.attempts, key)
			removed++
		}
	}
	return removed
}
