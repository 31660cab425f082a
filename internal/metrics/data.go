package metrics

import "github.com/rohmanhakim/docs-crawler/pkg/classify"

// Counts is the set of monotonic counters kept both globally and per-domain.
type Counts struct {
	Requests            int64
	Successes           int64
	Failures            int64
	Retries             int64
	RateLimitHits       int64
	CircuitBreakerTrips int64
}

// Snapshot is a point-in-time, read-only copy of everything the Collector
// has counted. It is safe to hold onto and range over after the call that
// produced it returns.
type Snapshot struct {
	Total          Counts
	PerDomain      map[string]Counts
	PerFailureType map[classify.FailureType]int64
}
