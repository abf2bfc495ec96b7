package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	if l.rate != 10.0 {
		t.Errorf("rate = %f, want 10.0", l.rate)
	}
	if l.Burst() != 5 {
		t.Errorf("burst = %f, want 5", l.Burst())
	}
}

func TestAllow_WithinBurst(t *testing.T) {
	l := NewLimiter(1.0, 3)

	// First 3 requests should all be allowed (burst)
	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
}

func TestAllow_ExceedsBurst(t *testing.T) {
	l := NewLimiter(1.0, 2)

	// Consume entire burst
	l.Allow("key1")
	l.Allow("key1")

	// Next request should be rejected
	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_RefillAfterWait(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 2) // 10 tokens/sec
	l.nowFunc = func() time.Time { return now }

	// Consume burst
	l.Allow("key1")
	l.Allow("key1")

	// Should be rejected
	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	// Advance time by 200ms => 10 * 0.2 = 2 tokens refilled
	now = now.Add(200 * time.Millisecond)

	// Should be allowed now
	if !l.Allow("key1") {
		t.Error("expected allow after token refill")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := NewLimiter(1.0, 1)

	// Exhaust key1's burst
	l.Allow("key1")
	if l.Allow("key1") {
		t.Error("key1 should be exhausted")
	}

	// key2 should still work independently
	if !l.Allow("key2") {
		t.Error("key2 should be allowed (independent bucket)")
	}
}

func TestAllow_BurstDoesNotExceedMax(t *testing.T) {
	now := time.Now()
	l := NewLimiter(100.0, 3) // High rate, but burst capped at 3
	l.nowFunc = func() time.Time { return now }

	// Exhaust burst
	l.Allow("key1")
	l.Allow("key1")
	l.Allow("key1")

	// Even after waiting a long time, tokens should cap at burst
	now = now.Add(10 * time.Second) // Would refill 1000 tokens uncapped

	// Should only get burst=3 tokens back
	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed after refill capped at burst", i+1)
		}
	}
	if l.Allow("key1") {
		t.Error("4th request should be rejected (burst cap)")
	}
}

func TestAllow_PartialTokenRefill(t *testing.T) {
	now := time.Now()
	l := NewLimiter(2.0, 5) // 2 tokens/sec
	l.nowFunc = func() time.Time { return now }

	// Use 3 tokens
	l.Allow("key1")
	l.Allow("key1")
	l.Allow("key1")

	// Advance 250ms => 2*0.25 = 0.5 tokens refilled, total ~2.5
	// (started with 5, used 3 => 2.0 remaining; +0.5 = 2.5)
	now = now.Add(250 * time.Millisecond)

	// Should allow (2.5 tokens available, need 1)
	if !l.Allow("key1") {
		t.Error("expected allow with partial refill")
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	l := NewLimiter(0.0, 2)

	// Initial burst should still work
	if !l.Allow("key1") {
		t.Error("first request should use initial burst")
	}
	if !l.Allow("key1") {
		t.Error("second request should use initial burst")
	}

	// No refill ever (rate=0)
	if l.Allow("key1") {
		t.Error("should be rejected with zero rate")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(1000.0, 100)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent-key")
		}()
	}

	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}

	// With burst=100 and 200 requests, should allow roughly 100
	// Allow some slack for timing
	if allowedCount < 90 || allowedCount > 110 {
		t.Errorf("allowed %d requests, expected ~100 (burst limit)", allowedCount)
	}
}

func TestAllowN_ChargesCost(t *testing.T) {
	now := time.Now()
	l := NewLimiter(100.0, 1000)
	l.nowFunc = func() time.Time { return now }

	if !l.AllowN("solve", 600) {
		t.Fatal("600 of 1000 should be allowed")
	}
	if l.AllowN("solve", 600) {
		t.Error("second 600 should be rejected with 400 left")
	}
	// A rejected request spends nothing.
	if !l.AllowN("solve", 400) {
		t.Error("remaining 400 should still be available")
	}

	// 2s at 100/sec refills 200.
	now = now.Add(2 * time.Second)
	if !l.AllowN("solve", 200) {
		t.Error("expected refill of 200 units")
	}
	if l.AllowN("solve", 1) {
		t.Error("bucket should be empty")
	}
}

func TestAllowN_CostAboveBurst(t *testing.T) {
	l := NewLimiter(1e9, 10)
	if l.AllowN("key1", 11) {
		t.Error("cost above burst should never be allowed")
	}
	if !l.AllowN("key1", 10) {
		t.Error("cost equal to burst should be allowed on a full bucket")
	}
}

func TestWorkUnits(t *testing.T) {
	tests := []struct {
		count, length, n int
		want             float64
	}{
		{20000, 50, 3, 3e6},
		{1, 1, 1, 1},
		{1000, 5, 0, 0},
	}
	for _, tt := range tests {
		if got := WorkUnits(tt.count, tt.length, tt.n); got != tt.want {
			t.Errorf("WorkUnits(%d, %d, %d) = %f, want %f", tt.count, tt.length, tt.n, got, tt.want)
		}
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	tests := []struct {
		tool  string
		burst float64
	}{
		{"mcsolve_solve", 5e7},
		{"mcsolve_sweep", 1e9},
		{"mcsolve_runs", 10},
		{"mcsolve_check", 10},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			limiter, ok := limiters[tt.tool]
			if !ok {
				t.Fatalf("missing budget for tool: %s", tt.tool)
			}
			if limiter.Burst() != tt.burst {
				t.Errorf("burst = %f, want %f", limiter.Burst(), tt.burst)
			}
		})
	}
}

func TestToolBudgets_ReferenceWorkloads(t *testing.T) {
	limiters := NewToolLimiters()

	// The reference solve fits the solve budget many times over.
	if err := CheckBudget(limiters, "mcsolve_solve", WorkUnits(20000, 50, 3)); err != nil {
		t.Errorf("reference solve rejected: %v", err)
	}

	// The default 45x20 sweep over a 3x3 system fits the sweep budget.
	var sweepCost float64
	for length := 5; length <= 49; length++ {
		for count := 1000; count <= 20000; count += 1000 {
			sweepCost += WorkUnits(count, length, 3)
		}
	}
	if err := CheckBudget(limiters, "mcsolve_sweep", sweepCost); err != nil {
		t.Errorf("default sweep rejected: %v", err)
	}
}

func TestCheckBudget(t *testing.T) {
	limiters := ToolLimiters{"tool": NewLimiter(0, 100)}

	if err := CheckBudget(limiters, "tool", 60); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := CheckBudget(limiters, "tool", 60)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}

	err = CheckBudget(limiters, "tool", 1000)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded for oversized request, got %v", err)
	}

	// Unknown tool should pass (no limiter = no limit)
	if err := CheckBudget(limiters, "unknown_tool", 1e12); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"mcsolve_runs": NewLimiter(0, 1)}

	if err := CheckLimit(limiters, "mcsolve_runs"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckLimit(limiters, "mcsolve_runs"); err == nil {
		t.Error("expected rate limit error after burst exhaustion")
	}
}
