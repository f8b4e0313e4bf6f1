package services

import (
	"fmt"
	"sync"
	"time"
)

// UploadRateLimiter caps CSV uploads per client over a sliding window.
// Retraining runs on every upload, so this also bounds trainer churn.
type UploadRateLimiter struct {
	mu          sync.RWMutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
}

func NewUploadRateLimiter(maxRequests int, window time.Duration) *UploadRateLimiter {
	return &UploadRateLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow checks whether the client may upload now, recording the attempt.
func (rl *UploadRateLimiter) Allow(clientKey string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanupOldRequests(clientKey, now)

	if len(rl.requests[clientKey]) >= rl.maxRequests {
		return fmt.Errorf("rate limit exceeded: maximum %d uploads per %v", rl.maxRequests, rl.window)
	}

	rl.requests[clientKey] = append(rl.requests[clientKey], now)
	return nil
}

func (rl *UploadRateLimiter) cleanupOldRequests(clientKey string, now time.Time) {
	requests, exists := rl.requests[clientKey]
	if !exists {
		return
	}
	cutoff := now.Add(-rl.window)
	valid := make([]time.Time, 0, len(requests))
	for _, req := range requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	if len(valid) == 0 {
		delete(rl.requests, clientKey)
	} else {
		rl.requests[clientKey] = valid
	}
}

// Reset clears all rate limiting data.
func (rl *UploadRateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = make(map[string][]time.Time)
}
