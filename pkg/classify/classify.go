// Package classify maps a fetch outcome (HTTP status, transport error code,
// message) to a FailureType, and turns a FailureType into a retry/backoff
// decision. It is the single source of retry truth that every other
// component funnels through; per-package Cause enums (fetcher.FetchErrorCause,
// robots.RobotsErrorCause, storage.StorageErrorCause) stay observational only.
package classify

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// FailureType tags why a fetch attempt did not produce usable content.
type FailureType string

const (
	None                FailureType = "NONE"
	PermanentClientErr  FailureType = "PERMANENT_4XX"
	RateLimited         FailureType = "RATE_LIMITED"
	TemporaryServerErr  FailureType = "TEMPORARY_5XX"
	Timeout             FailureType = "TIMEOUT"
	Connection          FailureType = "CONNECTION"
	DNS                 FailureType = "DNS"
	SSL                 FailureType = "SSL"
	RedirectLoop        FailureType = "REDIRECT_LOOP"
	RobotsBlocked       FailureType = "ROBOTS_BLOCKED"
	ContentTypeRejected FailureType = "CONTENT_TYPE_REJECTED"
	Unknown             FailureType = "UNKNOWN"
)

// Retryable reports whether a fresh attempt at this failure type can plausibly
// succeed later.
func (f FailureType) Retryable() bool {
	switch f {
	case PermanentClientErr, RobotsBlocked, ContentTypeRejected, RedirectLoop, SSL:
		return false
	default:
		return true
	}
}

// DefaultBackoff is the starting delay used before any per-type override.
func (f FailureType) DefaultBackoff() time.Duration {
	if f == RateLimited {
		return 60 * time.Second
	}
	return 1 * time.Second
}

// TransportCode is a small closed set of transport-layer failure codes a
// Fetcher surfaces when the round trip never produced an HTTP response.
type TransportCode string

const (
	TransportNone       TransportCode = ""
	TransportTimeout    TransportCode = "timeout"
	TransportConnection TransportCode = "connection"
	TransportDNS        TransportCode = "dns"
	TransportSSL        TransportCode = "ssl"
)

// Config holds the tunables classify's retry-delay calculation needs. It is
// intentionally decoupled from internal/config so classify stays a pure,
// dependency-free package; callers project the fields they need out of the
// application config when constructing one.
type Config struct {
	InitialDelay       time.Duration
	Multiplier         float64
	MaxDelay           time.Duration
	RateLimitedInitial time.Duration
	Jitter             float64 // fraction, e.g. 0.2 for +/-20%
}

// The classification inputs are plain values; no package state is kept, so
// Classify is safe to call from any goroutine.

// Classify implements the precedence chain: transport errors first, then HTTP
// status code buckets (429, 5xx, 408, other 4xx), then a detected redirect
// loop, then the robots-blocked pseudo-status, otherwise UNKNOWN.
func Classify(httpStatus int, transportCode TransportCode, robotsBlocked bool, redirectLoopDetected bool) FailureType {
	switch transportCode {
	case TransportTimeout:
		return Timeout
	case TransportConnection:
		return Connection
	case TransportDNS:
		return DNS
	case TransportSSL:
		return SSL
	}

	switch {
	case httpStatus == 429:
		return RateLimited
	case httpStatus >= 500 && httpStatus < 600:
		return TemporaryServerErr
	case httpStatus == 408:
		return Timeout
	case httpStatus >= 400 && httpStatus < 500:
		return PermanentClientErr
	}

	if redirectLoopDetected {
		return RedirectLoop
	}

	if robotsBlocked {
		return RobotsBlocked
	}

	return Unknown
}

// ClassifyMessage is a convenience wrapper for callers that only have a raw
// transport error message (no structured code) to go on, e.g. from
// net/url.Error.Err.Error(). It pattern-matches the message into a
// TransportCode and falls through to Classify.
func ClassifyMessage(httpStatus int, message string, robotsBlocked bool, redirectLoopDetected bool) FailureType {
	return Classify(httpStatus, transportCodeFromMessage(message), robotsBlocked, redirectLoopDetected)
}

func transportCodeFromMessage(message string) TransportCode {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return TransportTimeout
	case strings.Contains(lower, "no such host"), strings.Contains(lower, "dns"):
		return TransportDNS
	case strings.Contains(lower, "certificate"), strings.Contains(lower, "x509"), strings.Contains(lower, "tls"):
		return TransportSSL
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"), strings.Contains(lower, "no route to host"), strings.Contains(lower, "network is unreachable"):
		return TransportConnection
	default:
		return TransportNone
	}
}

// ShouldRetry reports whether failureType is retryable and retryCount has not
// yet exhausted maxRetries.
func ShouldRetry(failureType FailureType, retryCount, maxRetries int) bool {
	return failureType.Retryable() && retryCount < maxRetries
}

// CalculateRetryDelay computes the delay before nextAttempt (1-indexed),
// applying exponential growth capped at cfg.MaxDelay and up to cfg.Jitter
// fractional jitter (e.g. 0.2 => +/-20%). RATE_LIMITED uses
// cfg.RateLimitedInitial instead of cfg.InitialDelay as its base.
func CalculateRetryDelay(nextAttempt int, cfg Config, failureType FailureType, rng *rand.Rand) time.Duration {
	if nextAttempt < 1 {
		nextAttempt = 1
	}

	initial := cfg.InitialDelay
	if failureType == RateLimited {
		initial = cfg.RateLimitedInitial
	}

	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(initial) * math.Pow(multiplier, float64(nextAttempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter > 0 && rng != nil {
		spread := delay * cfg.Jitter
		// uniform in [-spread, +spread]
		delay += (rng.Float64()*2 - 1) * spread
		if delay < 0 {
			delay = 0
		}
	}

	return time.Duration(delay)
}
