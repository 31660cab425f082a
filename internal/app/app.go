// Package app is the composition root: it wires every shared port from a
// single internal/config.Config and stands up the process's §6 HTTP surface.
// Grounded on original_source's process entrypoint (main() constructing one
// CrawlerManager, one DomainManager, one of each fetcher/parser/robots
// client and handing them to the manager) and, for the Go idiom of a single
// exported New/Close pair over an unexported field set, on
// ternarybob-quaero's cmd/*/main.go wiring style.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/crawlengine"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/httpapi"
	"github.com/rohmanhakim/docs-crawler/internal/jobstore"
	"github.com/rohmanhakim/docs-crawler/internal/logbus"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metrics"
	"github.com/rohmanhakim/docs-crawler/internal/parser"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sessionmgr"
	"github.com/rohmanhakim/docs-crawler/internal/store"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// sessionResultRetention is how long a stopped session's results stay
// queryable through GET /api/crawl/status before sessionmgr evicts it.
const sessionResultRetention = 24 * time.Hour

// App holds every long-lived port the `serve` process needs and the
// http.Handler that fronts them.
type App struct {
	cfg config.Config

	Store    *store.Store
	JobStore *jobstore.JobStore
	Bus      *logbus.Bus
	Sessions *sessionmgr.Manager
	Server   *httpapi.Server
}

// New wires the shared ports described by cfg: one Canonical Store Writer
// (badgerhold), one Job Store (badgerhold + robfig/cron), one Log Bus, one
// domain-level rate limiter/circuit breaker, one HTML fetcher (with an
// optional Browserless/chromedp Renderer layered on top), and one content
// parser. A fresh internal/crawlengine.Engine is built per session by the
// sessionmgr.EngineFactory closure below, each with its own Frontier and
// robots cache but sharing every other port, per §5's ownership rules.
func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.BadgerDataDir())
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	jobStore := jobstore.New(st.DB())
	jobStore.Start()

	bus := logbus.New()
	collector := metrics.NewCollector()

	domainMgr := limiter.NewConcurrentRateLimiter()
	domainMgr.SetBaseDelay(cfg.BaseDelay())
	domainMgr.SetJitter(cfg.Jitter())
	domainMgr.SetRandomSeed(cfg.RandomSeed())
	domainMgr.SetCircuitBreakerParams(
		cfg.CircuitBreakerFailureThreshold(),
		cfg.CircuitBreakerOpenDuration(),
		cfg.CircuitBreakerMaxOpenDuration(),
	)

	recorder := metadata.NewRecorder("engine")
	sink := &recorder

	htmlFetch := fetcher.NewHtmlFetcher(sink)
	htmlFetch.Init(&http.Client{Timeout: cfg.Timeout()})

	renderer := buildRenderer(cfg)
	if renderer != nil {
		htmlFetch.SetRenderer(renderer, fetcher.RenderOptions{
			WaitForIdle: cfg.SpaRenderWaitForIdle(),
			UserAgent:   cfg.UserAgent(),
		})
	}

	ext := extractor.NewDomExtractor(sink)
	contentParser := parser.NewParser(sink, &ext)

	baseSessionConfig := crawlengine.SessionConfig{
		MaxPages:             cfg.MaxPages(),
		MaxDepth:             cfg.MaxDepth(),
		RestrictToSeedDomain: true,
		RespectRobotsTxt:     true,
		FollowRedirects:      true,
		MaxRedirects:         10,
		SpaRenderingEnabled:  cfg.SpaRenderingEnabled(),
		BrowserlessUrl:       cfg.BrowserlessUrl(),
		MaxRetries:           cfg.JobMaxRetries(),
		RetryInitialDelay:    cfg.JobRetryInitialDelay(),
		RetryMultiplier:      cfg.JobRetryBackoffMultiplier(),
		RetryMaxDelay:        cfg.JobRetryMaxDelay(),
		RateLimitedInitial:   cfg.BaseDelay(),
		RetryJitter:          cfg.Jitter().Seconds(),
		UserAgent:            cfg.UserAgent(),
		Timeout:              cfg.Timeout(),
	}

	sleeper := timeutil.NewRealSleeper()

	engineFactory := func(sessionId string) *crawlengine.Engine {
		crawlFrontier := frontier.NewCrawlFrontier()

		robot := robots.NewCachedRobot(sink)
		robot.SetCacheTTL(cfg.RobotsCacheTtl())
		robot.Init(cfg.UserAgent())

		return crawlengine.New(
			sessionId,
			cfg,
			&crawlFrontier,
			&robot,
			domainMgr,
			&htmlFetch,
			&contentParser,
			&collector,
			st,
			bus,
			&sleeper,
		)
	}

	sessions := sessionmgr.New(engineFactory, cfg.MaxConcurrentSessions(), sessionResultRetention)

	server := httpapi.New(sessions, st, bus, renderer, cfg.IndexerUrl(), baseSessionConfig)

	return &App{
		cfg:      cfg,
		Store:    st,
		JobStore: jobStore,
		Bus:      bus,
		Sessions: sessions,
		Server:   server,
	}, nil
}

// buildRenderer picks the Renderer backing SPA rendering: a Browserless
// HTTP client when BROWSERLESS_URL is configured, otherwise an in-process
// chromedp instance when SPA rendering is enabled at all, otherwise nil (no
// render attempt is ever made; fetches stay direct).
func buildRenderer(cfg config.Config) fetcher.Renderer {
	if cfg.BrowserlessUrl() != "" {
		r := fetcher.NewBrowserlessRenderer(cfg.BrowserlessUrl(), &http.Client{Timeout: 30 * time.Second})
		return &r
	}
	if cfg.SpaRenderingEnabled() {
		r := fetcher.NewChromedpRenderer()
		return &r
	}
	return nil
}

// ListenAndServe blocks serving the §6 HTTP/WebSocket surface on cfg's
// configured port.
func (a *App) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", a.cfg.HttpPort())
	return http.ListenAndServe(addr, a.Server.Router())
}

// Close stops the job scheduler and releases the store's badger handle.
// Running sessions are not stopped: the caller is expected to have already
// drained or cancelled them.
func (a *App) Close() error {
	a.JobStore.Stop()
	return a.Store.Close()
}
