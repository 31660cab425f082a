package metadata

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the write-side port every pipeline stage logs through.
// Recording is observational only: no implementation may feed back into
// scheduling, retry, or termination decisions.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, derived summary of a completed crawl.
// Called exactly once, after the scheduler has already decided the crawl is
// over; it must never be consulted to make that decision.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// Recorder is the logfmt-backed MetadataSink/CrawlFinalizer wired into every
// pipeline stage by the composition root. One Recorder is created per
// worker; workerName tags every line it writes.
type Recorder struct {
	workerName string
	mu         sync.Mutex
	out        io.Writer
}

// NewRecorder builds a Recorder that writes logfmt lines to stderr, tagged
// with workerName.
func NewRecorder(workerName string) Recorder {
	return Recorder{
		workerName: workerName,
		out:        os.Stderr,
	}
}

// SetOutput redirects where log lines are written. Mainly useful in tests.
func (r *Recorder) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

func (r *Recorder) encode(keyvals ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.out
	if out == nil {
		out = os.Stderr
	}

	enc := logfmt.NewEncoder(out)
	kv := append([]any{"worker", r.workerName}, keyvals...)
	if err := enc.EncodeKeyvals(kv...); err != nil {
		return
	}
	_ = enc.EndRecord()
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.encode(
		"event", "fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retries", retryCount,
		"depth", crawlDepth,
	)
}

func (r *Recorder) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	r.encode(
		"event", "asset_fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"retries", retryCount,
	)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	kv := []any{
		"event", "error",
		"time", observedAt.Format(time.RFC3339),
		"package", packageName,
		"action", action,
		"cause", causeLabel(cause),
		"details", details,
	}
	for _, attr := range attrs {
		kv = append(kv, string(attr.Key), attr.Value)
	}
	r.encode(kv...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	kv := []any{
		"event", "artifact",
		"kind", string(kind),
		"path", path,
	}
	for _, attr := range attrs {
		kv = append(kv, string(attr.Key), attr.Value)
	}
	r.encode(kv...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.encode(
		"event", "crawl_finished",
		"total_pages", totalPages,
		"total_errors", totalErrors,
		"total_assets", totalAssets,
		"duration_ms", duration.Milliseconds(),
	)
}

func causeLabel(cause ErrorCause) string {
	switch cause {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

// NoopSink discards everything recorded through it. Tests embed it to
// satisfy MetadataSink/CrawlFinalizer while overriding only the methods
// they actually want to assert on.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int) {}

func (NoopSink) RecordAssetFetch(string, int, time.Duration, int) {}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}

func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute) {}

func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration) {}
