// Package ratelimit provides per-key token bucket budgets for MCP tools.
// Buckets hold work units rather than request counts, so a request that
// samples more chains drains more of the bucket.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned by CheckBudget when a request cannot be
// afforded right now.
var ErrBudgetExceeded = errors.New("compute budget exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   float64          // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate, burst float64) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() float64 {
	return l.burst
}

// Allow reports whether a single-token request for key may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN reports whether a request costing n tokens may proceed, and
// spends the tokens if so. A rejected request spends nothing. A cost above
// the burst size can never be afforded.
func (l *Limiter) AllowN(key string, n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		// First request for this key: start with full burst
		b = &bucket{
			tokens:    l.burst,
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastCheck = now
	}

	if b.tokens < n {
		return false
	}

	b.tokens -= n
	return true
}

// WorkUnits is the cost of one solve: every chain walks every component
// for the full chain length.
func WorkUnits(chainCount, chainLength, n int) float64 {
	return float64(chainCount) * float64(chainLength) * float64(n)
}

// ToolLimiters maps tool names to their budgets.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool budgets. A solve at
// the reference size costs 3e6 units and the default sweep about 7.7e8.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"mcsolve_solve": NewLimiter(1e6, 5e7),       // 1e6 units/sec, burst 5e7
		"mcsolve_sweep": NewLimiter(1e9/600.0, 1e9), // one default sweep per ~10 minutes
		"mcsolve_runs":  NewLimiter(1.0, 10),        // 60/minute, burst 10
		"mcsolve_check": NewLimiter(1.0, 10),        // 60/minute, burst 10
	}
}

// CheckLimit charges a single unit against the tool's budget.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckBudget(limiters, toolName, 1)
}

// CheckBudget charges cost units against the tool's budget.
// Returns nil if allowed, or an error wrapping ErrBudgetExceeded.
// Tools without a configured limiter are always allowed.
func CheckBudget(limiters ToolLimiters, toolName string, cost float64) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if cost > limiter.burst {
		return fmt.Errorf("%w for %s: request costs %.0f units, maximum is %.0f", ErrBudgetExceeded, toolName, cost, limiter.burst)
	}
	if !limiter.AllowN(toolName, cost) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrBudgetExceeded, toolName)
	}

	return nil
}
