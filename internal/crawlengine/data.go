package crawlengine

import (
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-crawler/pkg/classify"
)

// State is the session-scoped crawl state machine.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// CrawlStatus is the per-URL lifecycle status within a session's result log.
type CrawlStatus string

const (
	StatusQueued         CrawlStatus = "QUEUED"
	StatusDownloading    CrawlStatus = "DOWNLOADING"
	StatusDownloaded     CrawlStatus = "DOWNLOADED"
	StatusRetryScheduled CrawlStatus = "RETRY_SCHEDULED"
	StatusFailed         CrawlStatus = "FAILED"
)

// CrawlResult is the append-only, per-URL-per-attempt record a session's
// worker produces. getResults() returns a snapshot of the latest result per
// URL, keyed by canonical form.
type CrawlResult struct {
	Url         url.URL
	FinalUrl    url.URL
	Domain      string
	CrawlStatus CrawlStatus

	HttpStatus  int
	ContentType string
	ContentSize int
	Title       string
	Description string
	TextContent string

	OutboundLinks []string

	ErrorMessage       string
	FailureType        classify.FailureType
	TransportErrorCode classify.TransportCode

	RetryCount     int
	IsRetryAttempt bool

	QueuedAt      time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalRetryTime time.Duration

	RenderingMethod string
}

// SessionConfig is the per-session tunable set; updateConfig swaps it
// atomically and the worker loop picks up the new values on its next
// iteration.
type SessionConfig struct {
	MaxPages             int
	MaxDepth             int
	RestrictToSeedDomain bool
	RespectRobotsTxt     bool
	FollowRedirects      bool
	MaxRedirects         int
	Force                bool
	SpaRenderingEnabled  bool
	IncludeFullContent   bool
	BrowserlessUrl       string

	MaxRetries         int
	RetryInitialDelay  time.Duration
	RetryMultiplier    float64
	RetryMaxDelay      time.Duration
	RateLimitedInitial time.Duration
	RetryJitter        float64

	UserAgent string
	Timeout   time.Duration
}

// classifyConfig projects the retry-delay tunables classify.CalculateRetryDelay
// needs out of SessionConfig, keeping pkg/classify dependency-free.
func (c SessionConfig) classifyConfig() classify.Config {
	return classify.Config{
		InitialDelay:       c.RetryInitialDelay,
		Multiplier:         c.RetryMultiplier,
		MaxDelay:           c.RetryMaxDelay,
		RateLimitedInitial: c.RateLimitedInitial,
		Jitter:             c.RetryJitter,
	}
}

// StoreWriter is the port the engine upserts completed results through
// (internal/store's badgerhold-backed Canonical Store Writer on the real
// composition path; a no-op / in-memory fake in tests).
type StoreWriter interface {
	StoreCrawlResult(sessionId string, result CrawlResult) (string, error)
}

// Logger is the injected fan-out port the engine reports progress through,
// matching §9's "model manual callback wiring as an injected Logger
// interface" redesign note. internal/logbus.Bus implements this; a stdout
// sink is a second, independent implementation.
type Logger interface {
	Info(sessionId string, message string)
	Warn(sessionId string, message string)
	Error(sessionId string, message string)
}

// noopLogger discards everything; used when no Logger is injected.
type noopLogger struct{}

func (noopLogger) Info(string, string)  {}
func (noopLogger) Warn(string, string)  {}
func (noopLogger) Error(string, string) {}

// noopStoreWriter discards completed results; used when no StoreWriter is
// injected (e.g. a dry-run session, or unit tests exercising the worker loop
// in isolation).
type noopStoreWriter struct{}

func (noopStoreWriter) StoreCrawlResult(string, CrawlResult) (string, error) { return "", nil }
