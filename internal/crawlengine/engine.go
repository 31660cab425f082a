package crawlengine

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/metrics"
	"github.com/rohmanhakim/docs-crawler/internal/parser"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/pkg/classify"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Engine is a session's crawl state machine and single background worker. It
owns its Frontier and results log exclusively; the Domain Manager, Log Bus,
and Store Writer are shared across sessions and passed in already
constructed, per §5's ownership rules.

State machine: IDLE -> RUNNING -> STOPPING -> STOPPED. reset() is only valid
in STOPPED and returns the session to IDLE.

Grounded on internal/scheduler.Scheduler's single-admission-choke-point
composition (only this package calls frontier.Submit / robot.Decide) and
overall orchestration shape; the worker loop itself is new, since the
teacher's scheduler runs one synchronous pass rather than a session-scoped
background goroutine.
*/
type Engine struct {
	mu sync.Mutex

	sessionId  string
	state      State
	cfg        SessionConfig
	frontierCfg config.Config
	seedDomain string

	frontier   *frontier.CrawlFrontier
	robot      robots.Robot
	domainMgr  limiter.RateLimiter
	htmlFetch  fetcher.Fetcher
	contentParser *parser.Parser
	metrics    *metrics.Collector
	storeWriter StoreWriter
	logger     Logger
	sleeper    timeutil.Sleeper
	rng        *rand.Rand

	results      map[string]CrawlResult
	successCount int

	cancel context.CancelFunc
	done   chan struct{}
	onComplete func([]CrawlResult)
}

// New builds an idle Engine for sessionId and initializes its Frontier
// against frontierCfg's scope limits (MaxDepth/MaxPages). Any of
// storeWriter/logger may be nil, in which case a no-op implementation is
// used.
func New(
	sessionId string,
	frontierCfg config.Config,
	crawlFrontier *frontier.CrawlFrontier,
	robot robots.Robot,
	domainMgr limiter.RateLimiter,
	htmlFetch fetcher.Fetcher,
	contentParser *parser.Parser,
	collector *metrics.Collector,
	storeWriter StoreWriter,
	logger Logger,
	sleeper timeutil.Sleeper,
) *Engine {
	if storeWriter == nil {
		storeWriter = noopStoreWriter{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	crawlFrontier.Init(frontierCfg)
	return &Engine{
		sessionId:     sessionId,
		state:         StateIdle,
		frontierCfg:   frontierCfg,
		frontier:      crawlFrontier,
		robot:         robot,
		domainMgr:     domainMgr,
		htmlFetch:     htmlFetch,
		contentParser: contentParser,
		metrics:       collector,
		storeWriter:   storeWriter,
		logger:        logger,
		sleeper:       sleeper,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		results:       make(map[string]CrawlResult),
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AddSeedURL admits url at depth 0. The first call fixes seedDomain, used
// later by restrictToSeedDomain.
func (e *Engine) AddSeedURL(u url.URL, force bool) {
	e.mu.Lock()
	if e.seedDomain == "" {
		e.seedDomain = urlutil.Host(u)
	}
	key := urlutil.Canonicalize(u).String()
	e.results[key] = CrawlResult{
		Url:         u,
		Domain:      urlutil.Host(u),
		CrawlStatus: StatusQueued,
		QueuedAt:    time.Now(),
	}
	e.mu.Unlock()

	e.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
		u,
		frontier.SourceSeed,
		frontier.NewDiscoveryMetadata(0, nil),
	))
}

// UpdateConfig atomically swaps the session config; the worker loop reads it
// fresh on every iteration so new values take effect without a restart.
func (e *Engine) UpdateConfig(cfg SessionConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Start spawns the session's single worker goroutine. onComplete fires
// exactly once, after the worker exits, with a snapshot of final results.
func (e *Engine) Start(ctx context.Context, onComplete func([]CrawlResult)) error {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateStopping {
		e.mu.Unlock()
		return errors.New("crawlengine: session already running")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	e.state = StateRunning
	e.cancel = cancel
	e.done = make(chan struct{})
	e.onComplete = onComplete
	e.mu.Unlock()

	go e.runWorker(workerCtx)
	return nil
}

// Stop signals the worker to exit after its current in-flight fetch and
// blocks until it has done so.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Reset clears session state. Only valid when STOPPED or IDLE.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStopped && e.state != StateIdle {
		return errors.New("crawlengine: reset is only valid when stopped")
	}
	e.frontier.Init(e.frontierCfg)
	e.results = make(map[string]CrawlResult)
	e.successCount = 0
	e.seedDomain = ""
	e.state = StateIdle
	return nil
}

// Results returns a snapshot of the latest result per URL.
func (e *Engine) Results() []CrawlResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CrawlResult, 0, len(e.results))
	for _, r := range e.results {
		out = append(out, r)
	}
	return out
}

func (e *Engine) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(e.sessionId, "worker panicked, session marked FAILED")
		}
		e.mu.Lock()
		e.state = StateStopped
		done := e.done
		onComplete := e.onComplete
		e.mu.Unlock()
		if done != nil {
			close(done)
		}
		if onComplete != nil {
			onComplete(e.Results())
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		running := e.state == StateRunning
		cfg := e.cfg
		e.mu.Unlock()
		if !running {
			return
		}

		token, ok := e.frontier.Dequeue()
		if !ok {
			if e.frontier.HasReadyURLs() || e.frontier.PendingRetryCount() > 0 {
				e.sleeper.Sleep(500 * time.Millisecond)
				continue
			}
			return
		}

		u := token.URL()
		domain := urlutil.Host(u)

		if e.domainMgr.IsCircuitBreakerOpen(domain) {
			if e.metrics != nil {
				e.metrics.RecordCircuitBreakerTrip(domain)
			}
			e.logger.Warn(e.sessionId, "\U0001F6A8 CIRCUIT BREAKER ACTIVE for "+domain)
			continue
		}

		if delay := e.domainMgr.ResolveDelay(domain); delay > 0 {
			_, retryCount, _ := e.frontier.GetQueuedURLInfo(u)
			e.frontier.ScheduleRetry(u, retryCount, "domain delay", string(classify.TemporaryServerErr), delay)
			continue
		}

		e.markDownloading(u, domain)

		result := e.processURL(ctx, u, token.Depth(), cfg)
		result.FinishedAt = time.Now()

		if result.CrawlStatus == StatusDownloaded {
			e.frontier.MarkVisited(u)
			if e.metrics != nil {
				e.metrics.RecordSuccess(domain)
			}
			e.domainMgr.RecordSuccess(domain)
			e.successCount++
		} else {
			_, retryCount, _ := e.frontier.GetQueuedURLInfo(u)
			if classify.ShouldRetry(result.FailureType, retryCount, cfg.MaxRetries) {
				nextAttempt := retryCount + 1
				delay := classify.CalculateRetryDelay(nextAttempt, cfg.classifyConfig(), result.FailureType, e.rng)
				e.frontier.ScheduleRetry(u, nextAttempt, result.ErrorMessage, string(result.FailureType), delay)
				result.CrawlStatus = StatusRetryScheduled
				result.RetryCount = nextAttempt
				if e.metrics != nil {
					e.metrics.RecordRetry(domain)
				}
			} else {
				e.frontier.MarkVisited(u)
				result.CrawlStatus = StatusFailed
				if e.metrics != nil {
					e.metrics.RecordFailure(domain, result.FailureType)
				}
				if result.FailureType == classify.RateLimited {
					e.domainMgr.RecordRateLimit(domain)
				} else {
					e.domainMgr.RecordFailure(domain)
				}
			}
		}

		e.upsertResult(u, result)
		if _, err := e.storeWriter.StoreCrawlResult(e.sessionId, result); err != nil {
			e.logger.Warn(e.sessionId, "store write failed: "+err.Error())
		}

		e.mu.Lock()
		maxPages := e.cfg.MaxPages
		done := maxPages > 0 && e.successCount >= maxPages
		e.mu.Unlock()
		if done {
			return
		}

		e.sleeper.Sleep(50 * time.Millisecond)
	}
}

func (e *Engine) markDownloading(u url.URL, domain string) {
	key := urlutil.Canonicalize(u).String()
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.results[key]
	if !ok {
		result = CrawlResult{Url: u, Domain: domain, QueuedAt: time.Now()}
	}
	result.CrawlStatus = StatusDownloading
	result.StartedAt = time.Now()
	e.results[key] = result
}

func (e *Engine) upsertResult(u url.URL, result CrawlResult) {
	key := urlutil.Canonicalize(u).String()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[key] = result
}

// processURL implements §4.9.1: robots check, fetch, parse, and failure
// classification for a single URL attempt.
func (e *Engine) processURL(ctx context.Context, u url.URL, depth int, cfg SessionConfig) CrawlResult {
	domain := urlutil.Host(u)
	result := CrawlResult{Url: u, Domain: domain, StartedAt: time.Now()}

	if cfg.RespectRobotsTxt {
		decision, robotsErr := e.robot.Decide(u)
		if robotsErr != nil {
			result.ErrorMessage = robotsErr.Error()
			result.FailureType = classify.Unknown
			return result
		}
		if !decision.Allowed {
			result.FailureType = classify.RobotsBlocked
			result.ErrorMessage = "disallowed by robots.txt"
			return result
		}
	}

	fetchParam := fetcher.NewFetchParam(u, cfg.UserAgent)
	retryParam := retry.NewRetryParam(0, 0, e.rng.Int63(), 1, timeutil.NewBackoffParam(0, 1, 0))

	fetchResult, fetchErr := e.htmlFetch.Fetch(ctx, depth, fetchParam, retryParam)
	if e.metrics != nil {
		e.metrics.RecordRequest(domain)
	}
	if fetchErr != nil {
		failureType, message := classifyFetchFailure(fetchErr)
		result.FailureType = failureType
		result.ErrorMessage = message
		return result
	}

	result.FinalUrl = fetchResult.URL()
	result.HttpStatus = fetchResult.Code()
	result.ContentSize = int(fetchResult.SizeByte())
	if headers := fetchResult.Headers(); headers != nil {
		result.ContentType = headers["Content-Type"]
	}
	result.CrawlStatus = StatusDownloaded

	parseResult, parseErr := e.contentParser.Parse(fetchResult.URL(), fetchResult.Body())
	if parseErr != nil {
		// A parse failure does not fail the fetch itself; the page was
		// downloaded, it simply yields no extracted fields.
		return result
	}

	result.Title = parseResult.GetTitle()
	result.Description = parseResult.GetMetaDescription()
	if cfg.IncludeFullContent {
		result.TextContent = parseResult.GetTextContent()
	}
	result.OutboundLinks = parseResult.GetLinks()

	e.extractAndAddURLs(parseResult.GetLinks(), u, depth, cfg)

	return result
}

// extractAndAddURLs implements §4.9.2: scope/depth/robots-filtered link
// expansion into the frontier.
func (e *Engine) extractAndAddURLs(links []string, baseUrl url.URL, depth int, cfg SessionConfig) {
	if cfg.MaxDepth > 0 && depth+1 > cfg.MaxDepth {
		return
	}

	e.mu.Lock()
	successCount := e.successCount
	e.mu.Unlock()
	if cfg.MaxPages > 0 && successCount >= cfg.MaxPages {
		return
	}

	seedHost := urlutil.Host(baseUrl)
	if e.seedDomain != "" {
		seedHost = e.seedDomain
	}

	for _, raw := range links {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		resolved := urlutil.Resolve(parsed, baseUrl.Scheme, baseUrl.Host)
		if resolved.Host == "" {
			continue
		}

		if cfg.RestrictToSeedDomain && urlutil.Host(resolved) != seedHost {
			continue
		}

		if cfg.RespectRobotsTxt {
			decision, robotsErr := e.robot.Decide(resolved)
			if robotsErr != nil || !decision.Allowed {
				continue
			}
		}

		e.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
			resolved,
			frontier.SourceCrawl,
			frontier.NewDiscoveryMetadata(depth+1, nil),
		))
	}
}

// classifyFetchFailure maps internal/fetcher's local FetchError/RetryError
// causes onto pkg/classify.FailureType, the single source of retry truth
// every other component funnels through (§4.2).
func classifyFetchFailure(err failure.ClassifiedError) (classify.FailureType, string) {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		switch fe.Cause {
		case fetcher.ErrCauseTimeout:
			return classify.Classify(0, classify.TransportTimeout, false, false), err.Error()
		case fetcher.ErrCauseNetworkFailure, fetcher.ErrCauseReadResponseBodyError:
			return classify.Classify(0, classify.TransportConnection, false, false), err.Error()
		case fetcher.ErrCauseContentTypeInvalid:
			return classify.ContentTypeRejected, err.Error()
		case fetcher.ErrCauseRedirectLimitExceeded:
			return classify.Classify(0, classify.TransportNone, false, true), err.Error()
		case fetcher.ErrCauseRequestPageForbidden, fetcher.ErrCauseRepeated403:
			return classify.Classify(403, classify.TransportNone, false, false), err.Error()
		case fetcher.ErrCauseRequestTooMany:
			return classify.Classify(429, classify.TransportNone, false, false), err.Error()
		case fetcher.ErrCauseRequest5xx:
			return classify.Classify(500, classify.TransportNone, false, false), err.Error()
		}
	}
	return classify.Unknown, err.Error()
}
