package metrics

import (
	"io"
	"os"
	"sync"

	"github.com/go-logfmt/logfmt"
	"github.com/rohmanhakim/docs-crawler/pkg/classify"
)

/*
Responsibilities
- Count requests/successes/failures/retries/rate-limit hits/circuit-breaker
  trips, both globally and per-domain
- Count failures by FailureType
- Expose a point-in-time Snapshot
- Emit a human-readable digest at session end

Recording here is observational only, same discipline as internal/metadata:
nothing here feeds back into scheduling or retry decisions.
*/

// Collector aggregates crawl counters under a single mutex, the same
// one-mutex-per-component discipline pkg/limiter.ConcurrentRateLimiter uses
// for its per-host map.
type Collector struct {
	mu             sync.Mutex
	total          Counts
	perDomain      map[string]*Counts
	perFailureType map[classify.FailureType]int64
}

// NewCollector builds an empty Collector.
func NewCollector() Collector {
	return Collector{
		perDomain:      make(map[string]*Counts),
		perFailureType: make(map[classify.FailureType]int64),
	}
}

func (c *Collector) domain(d string) *Counts {
	counts, ok := c.perDomain[d]
	if !ok {
		counts = &Counts{}
		c.perDomain[d] = counts
	}
	return counts
}

// RecordRequest counts one fetch attempt against domain.
func (c *Collector) RecordRequest(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.Requests++
	c.domain(domain).Requests++
}

// RecordSuccess counts one fetch that produced usable content.
func (c *Collector) RecordSuccess(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.Successes++
	c.domain(domain).Successes++
}

// RecordFailure counts one final (non-retried, or retries-exhausted)
// failure, tagged with the classify.FailureType that caused it.
func (c *Collector) RecordFailure(domain string, failureType classify.FailureType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.Failures++
	c.domain(domain).Failures++
	c.perFailureType[failureType]++
}

// RecordRetry counts one scheduled retry (a failure that was not final).
func (c *Collector) RecordRetry(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.Retries++
	c.domain(domain).Retries++
}

// RecordRateLimit counts one 429/rate-limit cooldown hit against domain.
func (c *Collector) RecordRateLimit(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.RateLimitHits++
	c.domain(domain).RateLimitHits++
}

// RecordCircuitBreakerTrip counts one circuit-breaker open transition (or a
// URL skipped because the breaker for domain is already open).
func (c *Collector) RecordCircuitBreakerTrip(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.CircuitBreakerTrips++
	c.domain(domain).CircuitBreakerTrips++
}

// Snapshot returns a deep copy of the current counters, safe to retain and
// range over without holding the Collector's lock.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	perDomain := make(map[string]Counts, len(c.perDomain))
	for domain, counts := range c.perDomain {
		perDomain[domain] = *counts
	}

	perFailureType := make(map[classify.FailureType]int64, len(c.perFailureType))
	for failureType, n := range c.perFailureType {
		perFailureType[failureType] = n
	}

	return Snapshot{
		Total:          c.total,
		PerDomain:      perDomain,
		PerFailureType: perFailureType,
	}
}

// LogSummary writes a single logfmt line summarizing the session-end totals
// to out, following the same worker-tagged logfmt convention as
// internal/metadata.Recorder. Per-domain and per-failure-type breakdowns are
// written as one line each, so a wide crawl doesn't collapse onto one
// unreadably long record.
func (c *Collector) LogSummary(workerName string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	snapshot := c.Snapshot()

	enc := logfmt.NewEncoder(out)
	encodeRecord(enc, workerName,
		"event", "metrics_summary",
		"requests", snapshot.Total.Requests,
		"successes", snapshot.Total.Successes,
		"failures", snapshot.Total.Failures,
		"retries", snapshot.Total.Retries,
		"rate_limit_hits", snapshot.Total.RateLimitHits,
		"circuit_breaker_trips", snapshot.Total.CircuitBreakerTrips,
	)

	for domain, counts := range snapshot.PerDomain {
		encodeRecord(enc, workerName,
			"event", "metrics_summary_domain",
			"domain", domain,
			"requests", counts.Requests,
			"successes", counts.Successes,
			"failures", counts.Failures,
			"retries", counts.Retries,
			"rate_limit_hits", counts.RateLimitHits,
			"circuit_breaker_trips", counts.CircuitBreakerTrips,
		)
	}

	for failureType, n := range snapshot.PerFailureType {
		encodeRecord(enc, workerName,
			"event", "metrics_summary_failure_type",
			"failure_type", string(failureType),
			"count", n,
		)
	}
}

func encodeRecord(enc *logfmt.Encoder, workerName string, keyvals ...any) {
	kv := append([]any{"worker", workerName}, keyvals...)
	if err := enc.EncodeKeyvals(kv...); err != nil {
		return
	}
	_ = enc.EndRecord()
}
