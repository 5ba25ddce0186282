// Package server implements a token bucket rate limiter for per-sender
// throttling of direct messages.
package server

import (
	"sync"
	"time"
)

type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &rateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}

	rl.tokens--
	return true
}

// senderLimits keeps one token bucket per sender credential.
type senderLimits struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	burst    int
	interval time.Duration
}

func newSenderLimits(burst int, interval time.Duration) *senderLimits {
	return &senderLimits{
		limiters: make(map[string]*rateLimiter),
		burst:    burst,
		interval: interval,
	}
}

func (s *senderLimits) allow(credential string) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[credential]
	if !ok {
		limiter = newRateLimiter(s.burst, s.interval)
		s.limiters[credential] = limiter
	}
	s.mu.Unlock()

	return limiter.allow()
}

// forget drops the bucket of a credential that no longer exists.
func (s *senderLimits) forget(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, credential)
}

func (s *senderLimits) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
