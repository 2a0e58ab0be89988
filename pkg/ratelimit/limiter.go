package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different platforms
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a platform
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event. Unknown names pass through
// so an adapter without a configured limiter is never throttled to zero.
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return true
	}

	return limiter.Allow()
}

// Reserve returns a reservation for a future event
func (m *MultiLimiter) Reserve(name string) (*rate.Reservation, error) {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Reserve(), nil
}

// Default rate limiter names
const (
	LimiterGitHub    = "github"
	LimiterReddit    = "reddit"
	LimiterMedium    = "medium"
	LimiterZsxq      = "zsxq"
	LimiterAnthropic = "anthropic"
	LimiterSheets    = "sheets"
)

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	// GitHub: 5000 requests per hour authenticated = ~1.4 per second, burst 10
	m.AddLimiter(LimiterGitHub, 5000.0/3600, 10)

	// Reddit: 60 requests per minute = 1 per second, burst 10
	m.AddLimiter(LimiterReddit, 1, 10)

	// Medium RSS: no strict limit, but be polite - 1 per second, burst 5
	m.AddLimiter(LimiterMedium, 1, 5)

	// ZSXQ: unofficial API, keep it slow - 1 request per 2 seconds, burst 2
	m.AddLimiter(LimiterZsxq, 0.5, 2)

	// Anthropic: 10 requests per minute = ~0.17 per second, burst 2
	m.AddLimiter(LimiterAnthropic, 10.0/60, 2)

	// Sheets: 60 write requests per minute per user, burst 10
	m.AddLimiter(LimiterSheets, 1, 10)

	return m
}
