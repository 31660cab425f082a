package limiter_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
)

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"

	if rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should be closed for a host with no recorded failures")
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"

	for i := 0; i < 4; i++ {
		rl.RecordFailure(host)
	}
	if rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should still be closed before the failure threshold is reached")
	}

	rl.RecordFailure(host)
	if !rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should open once consecutive failures reach the threshold")
	}

	timing := rl.HostTimings()[host]
	if timing.CircuitState() != limiter.CircuitOpen {
		t.Errorf("CircuitState() = %v, want %v", timing.CircuitState(), limiter.CircuitOpen)
	}
	if timing.ConsecutiveFailures() != 5 {
		t.Errorf("ConsecutiveFailures() = %d, want 5", timing.ConsecutiveFailures())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"

	rl.RecordFailure(host)
	rl.RecordFailure(host)
	rl.RecordSuccess(host)

	timing := rl.HostTimings()[host]
	if timing.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures() after success = %d, want 0", timing.ConsecutiveFailures())
	}
	if timing.CircuitState() != limiter.CircuitClosed {
		t.Errorf("CircuitState() after success = %v, want %v", timing.CircuitState(), limiter.CircuitClosed)
	}
}

func TestCircuitBreaker_DoublesOpenDurationOnRepeatedTrip(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"
	rl.SetCircuitBreakerParams(5, 100*time.Millisecond, time.Minute)

	for i := 0; i < 5; i++ {
		rl.RecordFailure(host)
	}
	firstOpen := rl.HostTimings()[host]

	rl.RecordFailure(host)
	secondOpen := rl.HostTimings()[host]

	if secondOpen.CircuitState() != limiter.CircuitOpen {
		t.Fatalf("CircuitState() = %v, want %v", secondOpen.CircuitState(), limiter.CircuitOpen)
	}

	// The first trip opens for 100ms; the repeated trip doubles that to
	// 200ms, so the circuit is still open 150ms after it.
	time.Sleep(150 * time.Millisecond)
	if !rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should still be open 150ms after a repeated trip doubled the 100ms open duration")
	}

	_ = firstOpen
}

func TestCircuitBreaker_RecordRateLimitEscalates(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"

	before := time.Now()
	rl.RecordRateLimit(host)
	timing1 := rl.HostTimings()[host]
	if !timing1.RateLimitedUntil().After(before.Add(59 * time.Second)) {
		t.Errorf("RateLimitedUntil() after first hit should be ~60s out, got %v", timing1.RateLimitedUntil())
	}

	rl.RecordRateLimit(host)
	timing2 := rl.HostTimings()[host]
	if !timing2.RateLimitedUntil().After(timing1.RateLimitedUntil()) {
		t.Error("a second consecutive rate-limit hit should push rateLimitedUntil further out")
	}
}

func TestCircuitBreaker_SetCircuitBreakerParamsOverridesThreshold(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"
	rl.SetCircuitBreakerParams(2, time.Minute, 10*time.Minute)

	rl.RecordFailure(host)
	if rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should still be closed before the configured threshold is reached")
	}

	rl.RecordFailure(host)
	if !rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should open once consecutive failures reach the configured threshold")
	}
}

func TestCircuitBreaker_SetCircuitBreakerParamsIgnoresZeroValues(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	host := "example.com"
	rl.SetCircuitBreakerParams(0, 0, 0)

	for i := 0; i < 4; i++ {
		rl.RecordFailure(host)
	}
	if rl.IsCircuitBreakerOpen(host) {
		t.Error("a zero-valued override should leave the default threshold of 5 in place")
	}
	rl.RecordFailure(host)
	if !rl.IsCircuitBreakerOpen(host) {
		t.Error("circuit should open at the default threshold when overrides are zero")
	}
}
