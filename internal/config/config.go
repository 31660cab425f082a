package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial pages to give to the crawler to begin discovering and traversing other pages.
	seedURLs []url.URL
	// Whitelisted hostname. Build fills an empty set with the seed URLs' hosts
	allowedHosts map[string]struct{}
	// Which URL path segments are permitted to be fetched and traversed, even if the links are on the same domain
	allowedPathPrefix []string

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from a seed (root) URL
	maxDepth int
	// Maximum number of total documents are allowed to be fetched
	maxPages int

	//===============
	// Politeness
	//===============
	// Maximum number of crawl worker goroutines processing URLs concurrently;
	// it does not control OS threads or CPU parallelism.
	concurrency int
	// Minimum, fixed waiting time you enforce between two HTTP requests to the same host.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	// Intentional randomness applied to timing.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request in millisecond
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Output
	//===============
	// Root directory in which to store the resulting markdown files
	outputDir string
	// Whether the program will simulates what it would do without
	// actually performing any irreversible or side-effecting actions
	dryRun bool

	//===============
	// Extraction
	//===============
	// BodySpecificityBias is the threshold for preferring a child container over <body>.
	// If a child node's score is >= BodySpecificityBias * bodyScore, the child is preferred.
	// Default: 0.75 (75%)
	bodySpecificityBias float64
	// LinkDensityThreshold is the maximum ratio of link text to total text before
	// applying a penalty. Higher values allow more link-heavy content.
	// Default: 0.80 (80%)
	linkDensityThreshold float64
	// ScoreMultiplierNonWhitespaceDivisor is the divisor for calculating text score.
	// Score gets +1 point per NonWhitespaceDivisor characters.
	// Default: 50.0
	scoreMultiplierNonWhitespaceDivisor float64
	// ScoreMultiplierParagraphs is the score multiplier for each paragraph element.
	// Default: 5.0
	scoreMultiplierParagraphs float64
	// ScoreMultiplierHeadings is the score multiplier for each heading element (h1-h3).
	// Default: 10.0
	scoreMultiplierHeadings float64
	// ScoreMultiplierCodeBlocks is the score multiplier for each code block.
	// Default: 15.0
	scoreMultiplierCodeBlocks float64
	// ScoreMultiplierListItems is the score multiplier for each list item.
	// Default: 2.0
	scoreMultiplierListItems float64
	// ThresholdMinNonWhitespace is the minimum number of non-whitespace characters
	// required for content to be considered meaningful.
	// Default: 50
	thresholdMinNonWhitespace int
	// ThresholdMinHeadings is the minimum number of headings required.
	// Headings are optional but valuable.
	// Default: 0
	thresholdMinHeadings int
	// ThresholdMinParagraphsOrCode is the minimum number of paragraphs OR code blocks
	// required for content to be considered meaningful.
	// Default: 1
	thresholdMinParagraphsOrCode int
	// ThresholdMaxLinkDensity is the maximum ratio of link text to total text before
	// content is considered navigation-only and rejected.
	// Default: 0.8 (80%)
	thresholdMaxLinkDensity float64

	//===============
	// Circuit breaker / domain manager
	//===============
	// Consecutive failures against a host before its circuit opens
	circuitBreakerFailureThreshold int
	// Initial cooldown once a circuit opens, doubling on repeated trips
	circuitBreakerOpenDuration time.Duration
	// Ceiling on the doubling circuit-open cooldown
	circuitBreakerMaxOpenDuration time.Duration

	//===============
	// SPA rendering
	//===============
	// Whether pages detected as SPA shells are re-fetched through a renderer
	spaRenderingEnabled bool
	// Base URL of an external Browserless instance; empty means render
	// in-process via chromedp instead
	browserlessUrl string
	// How long the renderer waits for the page to settle before capturing HTML
	spaRenderWaitForIdle time.Duration

	//===============
	// Job scheduling
	//===============
	// Maximum retry attempts for a failed scheduled job
	jobMaxRetries int
	// Initial backoff delay between job retries
	jobRetryInitialDelay time.Duration
	// Ceiling on job retry backoff
	jobRetryMaxDelay time.Duration
	// Multiplier applied to job retry backoff on each attempt
	jobRetryBackoffMultiplier float64

	//===============
	// Serving
	//===============
	// TCP port the HTTP/WebSocket API listens on
	httpPort int
	// Directory Badger/badgerhold persists the document and job stores to
	badgerDataDir string
	// Maximum number of crawl sessions the session manager runs concurrently
	maxConcurrentSessions int
	// How long a fetched robots.txt is cached before re-fetching
	robotsCacheTtl time.Duration
	// Structured-logging level, e.g. "debug"/"info"/"warn"/"error"
	logLevel string
	// Base URL of the external search indexer the store writer best-effort
	// pushes newly-stored documents to
	indexerUrl string
	// Name of the search index documents are pushed into
	indexerIndexName string
	// Reserved for a future Mongo-backed document store; unused by the
	// current badgerhold-backed store writer
	mongoUri string
}

type configDTO struct {
	SeedURLs               []url.URL           `json:"seedUrls"`
	AllowedHosts           map[string]struct{} `json:"allowedHosts,omitempty"`
	AllowedPathPrefix      []string            `json:"allowedPathPrefix,omitempty"`
	MaxDepth               int                 `json:"maxDepth,omitempty"`
	MaxPages               int                 `json:"maxPages,omitempty"`
	Concurrency            int                 `json:"concurrency,omitempty"`
	BaseDelay              time.Duration       `json:"baseDelay,omitempty"`
	Jitter                 time.Duration       `json:"jitter,omitempty"`
	RandomSeed             int64               `json:"randomSeed,omitempty"`
	MaxAttempt             int                 `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration       `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64             `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration       `json:"backoffMaxDuration,omitempty"`
	Timeout                time.Duration       `json:"timeout,omitempty"`
	UserAgent              string              `json:"userAgent,omitempty"`
	OutputDir              string              `json:"outputDir,omitempty"`
	DryRun                 bool                `json:"dryRun,omitempty"`
	// Extraction parameters
	BodySpecificityBias                 float64 `json:"bodySpecificityBias,omitempty"`
	LinkDensityThreshold                float64 `json:"linkDensityThreshold,omitempty"`
	ScoreMultiplierNonWhitespaceDivisor float64 `json:"scoreMultiplierNonWhitespaceDivisor,omitempty"`
	ScoreMultiplierParagraphs           float64 `json:"scoreMultiplierParagraphs,omitempty"`
	ScoreMultiplierHeadings             float64 `json:"scoreMultiplierHeadings,omitempty"`
	ScoreMultiplierCodeBlocks           float64 `json:"scoreMultiplierCodeBlocks,omitempty"`
	ScoreMultiplierListItems            float64 `json:"scoreMultiplierListItems,omitempty"`
	ThresholdMinNonWhitespace           int     `json:"thresholdMinNonWhitespace,omitempty"`
	ThresholdMinHeadings                int     `json:"thresholdMinHeadings,omitempty"`
	ThresholdMinParagraphsOrCode        int     `json:"thresholdMinParagraphsOrCode,omitempty"`
	ThresholdMaxLinkDensity             float64 `json:"thresholdMaxLinkDensity,omitempty"`
	// Circuit breaker / domain manager
	CircuitBreakerFailureThreshold int           `json:"circuitBreakerFailureThreshold,omitempty"`
	CircuitBreakerOpenDuration     time.Duration `json:"circuitBreakerOpenDuration,omitempty"`
	CircuitBreakerMaxOpenDuration  time.Duration `json:"circuitBreakerMaxOpenDuration,omitempty"`
	// SPA rendering
	SpaRenderingEnabled  bool          `json:"spaRenderingEnabled,omitempty"`
	BrowserlessUrl       string        `json:"browserlessUrl,omitempty"`
	SpaRenderWaitForIdle time.Duration `json:"spaRenderWaitForIdle,omitempty"`
	// Job scheduling
	JobMaxRetries             int           `json:"jobMaxRetries,omitempty"`
	JobRetryInitialDelay      time.Duration `json:"jobRetryInitialDelay,omitempty"`
	JobRetryMaxDelay          time.Duration `json:"jobRetryMaxDelay,omitempty"`
	JobRetryBackoffMultiplier float64       `json:"jobRetryBackoffMultiplier,omitempty"`
	// Serving
	HttpPort      int    `json:"httpPort,omitempty"`
	BadgerDataDir string `json:"badgerDataDir,omitempty"`
	// Session / robots / logging / indexer
	MaxConcurrentSessions int           `json:"maxConcurrentSessions,omitempty"`
	RobotsCacheTtl        time.Duration `json:"robotsCacheTtl,omitempty"`
	LogLevel              string        `json:"logLevel,omitempty"`
	IndexerUrl            string        `json:"indexerUrl,omitempty"`
	IndexerIndexName      string        `json:"indexerIndexName,omitempty"`
	MongoUri              string        `json:"mongoUri,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {

	// Start with default config
	cfg, err := WithDefault(dto.SeedURLs).Build()
	if err != nil {
		return Config{}, err
	}

	// AllowedHosts can be empty - if so, default to seed URLs hostnames
	if len(dto.AllowedHosts) > 0 {
		cfg.allowedHosts = dto.AllowedHosts
	}

	// AllowedPathPrefix can be empty - always use DTO values
	cfg.allowedPathPrefix = dto.AllowedPathPrefix

	// For other fields, only override if non-zero value is provided
	if dto.MaxDepth != 0 {
		cfg.maxDepth = dto.MaxDepth
	}
	if dto.MaxPages != 0 {
		cfg.maxPages = dto.MaxPages
	}
	if dto.Concurrency != 0 {
		cfg.concurrency = dto.Concurrency
	}
	if dto.BaseDelay != 0 {
		cfg.baseDelay = dto.BaseDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}

	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	// DryRun is a boolean, check if explicitly set (we use the DTO value as-is since bool zero value is false)
	cfg.dryRun = dto.DryRun

	// Extraction parameters - only override if non-zero value is provided
	// For float64, we check if value is not 0 (which is also the zero value)
	if dto.BodySpecificityBias != 0 {
		cfg.bodySpecificityBias = dto.BodySpecificityBias
	}
	if dto.LinkDensityThreshold != 0 {
		cfg.linkDensityThreshold = dto.LinkDensityThreshold
	}
	if dto.ScoreMultiplierNonWhitespaceDivisor != 0 {
		cfg.scoreMultiplierNonWhitespaceDivisor = dto.ScoreMultiplierNonWhitespaceDivisor
	}
	if dto.ScoreMultiplierParagraphs != 0 {
		cfg.scoreMultiplierParagraphs = dto.ScoreMultiplierParagraphs
	}
	if dto.ScoreMultiplierHeadings != 0 {
		cfg.scoreMultiplierHeadings = dto.ScoreMultiplierHeadings
	}
	if dto.ScoreMultiplierCodeBlocks != 0 {
		cfg.scoreMultiplierCodeBlocks = dto.ScoreMultiplierCodeBlocks
	}
	if dto.ScoreMultiplierListItems != 0 {
		cfg.scoreMultiplierListItems = dto.ScoreMultiplierListItems
	}
	if dto.ThresholdMinNonWhitespace != 0 {
		cfg.thresholdMinNonWhitespace = dto.ThresholdMinNonWhitespace
	}
	// Note: ThresholdMinHeadings can be 0 (which is a valid value), so we don't check for non-zero
	cfg.thresholdMinHeadings = dto.ThresholdMinHeadings
	if dto.ThresholdMinParagraphsOrCode != 0 {
		cfg.thresholdMinParagraphsOrCode = dto.ThresholdMinParagraphsOrCode
	}
	if dto.ThresholdMaxLinkDensity != 0 {
		cfg.thresholdMaxLinkDensity = dto.ThresholdMaxLinkDensity
	}

	if dto.CircuitBreakerFailureThreshold != 0 {
		cfg.circuitBreakerFailureThreshold = dto.CircuitBreakerFailureThreshold
	}
	if dto.CircuitBreakerOpenDuration != 0 {
		cfg.circuitBreakerOpenDuration = dto.CircuitBreakerOpenDuration
	}
	if dto.CircuitBreakerMaxOpenDuration != 0 {
		cfg.circuitBreakerMaxOpenDuration = dto.CircuitBreakerMaxOpenDuration
	}

	// SpaRenderingEnabled is a boolean, use the DTO value as-is
	cfg.spaRenderingEnabled = dto.SpaRenderingEnabled
	if dto.BrowserlessUrl != "" {
		cfg.browserlessUrl = dto.BrowserlessUrl
	}
	if dto.SpaRenderWaitForIdle != 0 {
		cfg.spaRenderWaitForIdle = dto.SpaRenderWaitForIdle
	}

	if dto.JobMaxRetries != 0 {
		cfg.jobMaxRetries = dto.JobMaxRetries
	}
	if dto.JobRetryInitialDelay != 0 {
		cfg.jobRetryInitialDelay = dto.JobRetryInitialDelay
	}
	if dto.JobRetryMaxDelay != 0 {
		cfg.jobRetryMaxDelay = dto.JobRetryMaxDelay
	}
	if dto.JobRetryBackoffMultiplier != 0 {
		cfg.jobRetryBackoffMultiplier = dto.JobRetryBackoffMultiplier
	}

	if dto.HttpPort != 0 {
		cfg.httpPort = dto.HttpPort
	}
	if dto.BadgerDataDir != "" {
		cfg.badgerDataDir = dto.BadgerDataDir
	}

	if dto.MaxConcurrentSessions != 0 {
		cfg.maxConcurrentSessions = dto.MaxConcurrentSessions
	}
	if dto.RobotsCacheTtl != 0 {
		cfg.robotsCacheTtl = dto.RobotsCacheTtl
	}
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}
	if dto.IndexerUrl != "" {
		cfg.indexerUrl = dto.IndexerUrl
	}
	if dto.IndexerIndexName != "" {
		cfg.indexerIndexName = dto.IndexerIndexName
	}
	if dto.MongoUri != "" {
		cfg.mongoUri = dto.MongoUri
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config with the provided seed URLs and default values for all other fields.
// seedUrls is mandatory and must not be empty - an error will be returned if it is.
func WithDefault(seedUrls []url.URL) *Config {
	defaultConfig := Config{
		seedURLs:     seedUrls,
		allowedHosts: map[string]struct{}{},
		allowedPathPrefix: []string{
			"/",
		},
		maxDepth:               3,
		maxPages:               100,
		concurrency:            10,
		baseDelay:              time.Second,
		jitter:                 time.Millisecond * 500,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             10,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		timeout:                time.Second * 10,
		userAgent:              "docs-crawler/1.0",
		outputDir:              "output",
		dryRun:                 false,
		// Extraction defaults
		bodySpecificityBias:                 0.75,
		linkDensityThreshold:                0.80,
		scoreMultiplierNonWhitespaceDivisor: 50.0,
		scoreMultiplierParagraphs:           5.0,
		scoreMultiplierHeadings:             10.0,
		scoreMultiplierCodeBlocks:           15.0,
		scoreMultiplierListItems:            2.0,
		thresholdMinNonWhitespace:           50,
		thresholdMinHeadings:                0,
		thresholdMinParagraphsOrCode:        1,
		thresholdMaxLinkDensity:             0.8,
		// Circuit breaker defaults, matching pkg/limiter.ConcurrentRateLimiter's
		// built-in thresholds
		circuitBreakerFailureThreshold: 5,
		circuitBreakerOpenDuration:     time.Minute,
		circuitBreakerMaxOpenDuration:  30 * time.Minute,
		// SPA rendering defaults: disabled, in-process chromedp fallback
		spaRenderingEnabled:  false,
		browserlessUrl:       "",
		spaRenderWaitForIdle: 2 * time.Second,
		// Job scheduling defaults
		jobMaxRetries:             3,
		jobRetryInitialDelay:      5 * time.Second,
		jobRetryMaxDelay:          5 * time.Minute,
		jobRetryBackoffMultiplier: 2.0,
		// Serving defaults
		httpPort:      3000,
		badgerDataDir: "data/badger",
		// Session / robots / logging / indexer defaults
		maxConcurrentSessions: 5,
		robotsCacheTtl:        24 * time.Hour,
		logLevel:              "info",
		indexerUrl:            "",
		indexerIndexName:      "search_index",
		mongoUri:              "",
	}
	return &defaultConfig
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithAllowedHosts(hosts map[string]struct{}) *Config {
	c.allowedHosts = hosts
	return c
}

func (c *Config) WithAllowedPathPrefix(prefixes []string) *Config {
	c.allowedPathPrefix = prefixes
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxPages(pages int) *Config {
	c.maxPages = pages
	return c
}

func (c *Config) WithConcurrency(concurrency int) *Config {
	c.concurrency = concurrency
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithBodySpecificityBias(bias float64) *Config {
	c.bodySpecificityBias = bias
	return c
}

func (c *Config) WithLinkDensityThreshold(threshold float64) *Config {
	c.linkDensityThreshold = threshold
	return c
}

func (c *Config) WithScoreMultiplierNonWhitespaceDivisor(divisor float64) *Config {
	c.scoreMultiplierNonWhitespaceDivisor = divisor
	return c
}

func (c *Config) WithScoreMultiplierParagraphs(multiplier float64) *Config {
	c.scoreMultiplierParagraphs = multiplier
	return c
}

func (c *Config) WithScoreMultiplierHeadings(multiplier float64) *Config {
	c.scoreMultiplierHeadings = multiplier
	return c
}

func (c *Config) WithScoreMultiplierCodeBlocks(multiplier float64) *Config {
	c.scoreMultiplierCodeBlocks = multiplier
	return c
}

func (c *Config) WithScoreMultiplierListItems(multiplier float64) *Config {
	c.scoreMultiplierListItems = multiplier
	return c
}

func (c *Config) WithThresholdMinNonWhitespace(min int) *Config {
	c.thresholdMinNonWhitespace = min
	return c
}

func (c *Config) WithThresholdMinHeadings(min int) *Config {
	c.thresholdMinHeadings = min
	return c
}

func (c *Config) WithThresholdMinParagraphsOrCode(min int) *Config {
	c.thresholdMinParagraphsOrCode = min
	return c
}

func (c *Config) WithThresholdMaxLinkDensity(max float64) *Config {
	c.thresholdMaxLinkDensity = max
	return c
}

func (c *Config) WithCircuitBreakerFailureThreshold(threshold int) *Config {
	c.circuitBreakerFailureThreshold = threshold
	return c
}

func (c *Config) WithCircuitBreakerOpenDuration(duration time.Duration) *Config {
	c.circuitBreakerOpenDuration = duration
	return c
}

func (c *Config) WithCircuitBreakerMaxOpenDuration(duration time.Duration) *Config {
	c.circuitBreakerMaxOpenDuration = duration
	return c
}

func (c *Config) WithSpaRenderingEnabled(enabled bool) *Config {
	c.spaRenderingEnabled = enabled
	return c
}

func (c *Config) WithBrowserlessUrl(browserlessUrl string) *Config {
	c.browserlessUrl = browserlessUrl
	return c
}

func (c *Config) WithSpaRenderWaitForIdle(wait time.Duration) *Config {
	c.spaRenderWaitForIdle = wait
	return c
}

func (c *Config) WithJobMaxRetries(retries int) *Config {
	c.jobMaxRetries = retries
	return c
}

func (c *Config) WithJobRetryInitialDelay(delay time.Duration) *Config {
	c.jobRetryInitialDelay = delay
	return c
}

func (c *Config) WithJobRetryMaxDelay(delay time.Duration) *Config {
	c.jobRetryMaxDelay = delay
	return c
}

func (c *Config) WithJobRetryBackoffMultiplier(multiplier float64) *Config {
	c.jobRetryBackoffMultiplier = multiplier
	return c
}

func (c *Config) WithHttpPort(port int) *Config {
	c.httpPort = port
	return c
}

func (c *Config) WithBadgerDataDir(dir string) *Config {
	c.badgerDataDir = dir
	return c
}

func (c *Config) WithMaxConcurrentSessions(max int) *Config {
	c.maxConcurrentSessions = max
	return c
}

func (c *Config) WithRobotsCacheTtl(ttl time.Duration) *Config {
	c.robotsCacheTtl = ttl
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithIndexerUrl(indexerUrl string) *Config {
	c.indexerUrl = indexerUrl
	return c
}

func (c *Config) WithIndexerIndexName(name string) *Config {
	c.indexerIndexName = name
	return c
}

func (c *Config) WithMongoUri(uri string) *Config {
	c.mongoUri = uri
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: seedUrls cannot be empty", ErrInvalidConfig)
	}

	// If allowedHosts is empty, default to seed URLs hostnames
	if len(c.allowedHosts) == 0 {
		c.allowedHosts = make(map[string]struct{})
		for _, u := range c.seedURLs {
			if u.Host != "" {
				c.allowedHosts[u.Host] = struct{}{}
			}
		}
	}

	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) AllowedHosts() map[string]struct{} {
	hosts := make(map[string]struct{})
	for k, v := range c.allowedHosts {
		hosts[k] = v
	}
	return hosts
}

func (c Config) AllowedPathPrefix() []string {
	prefixes := make([]string, len(c.allowedPathPrefix))
	copy(prefixes, c.allowedPathPrefix)
	return prefixes
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxPages() int {
	return c.maxPages
}

func (c Config) Concurrency() int {
	return c.concurrency
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) BodySpecificityBias() float64 {
	return c.bodySpecificityBias
}

func (c Config) LinkDensityThreshold() float64 {
	return c.linkDensityThreshold
}

func (c Config) ScoreMultiplierNonWhitespaceDivisor() float64 {
	return c.scoreMultiplierNonWhitespaceDivisor
}

func (c Config) ScoreMultiplierParagraphs() float64 {
	return c.scoreMultiplierParagraphs
}

func (c Config) ScoreMultiplierHeadings() float64 {
	return c.scoreMultiplierHeadings
}

func (c Config) ScoreMultiplierCodeBlocks() float64 {
	return c.scoreMultiplierCodeBlocks
}

func (c Config) ScoreMultiplierListItems() float64 {
	return c.scoreMultiplierListItems
}

func (c Config) ThresholdMinNonWhitespace() int {
	return c.thresholdMinNonWhitespace
}

func (c Config) ThresholdMinHeadings() int {
	return c.thresholdMinHeadings
}

func (c Config) ThresholdMinParagraphsOrCode() int {
	return c.thresholdMinParagraphsOrCode
}

func (c Config) ThresholdMaxLinkDensity() float64 {
	return c.thresholdMaxLinkDensity
}

func (c Config) CircuitBreakerFailureThreshold() int {
	return c.circuitBreakerFailureThreshold
}

func (c Config) CircuitBreakerOpenDuration() time.Duration {
	return c.circuitBreakerOpenDuration
}

func (c Config) CircuitBreakerMaxOpenDuration() time.Duration {
	return c.circuitBreakerMaxOpenDuration
}

func (c Config) SpaRenderingEnabled() bool {
	return c.spaRenderingEnabled
}

func (c Config) BrowserlessUrl() string {
	return c.browserlessUrl
}

func (c Config) SpaRenderWaitForIdle() time.Duration {
	return c.spaRenderWaitForIdle
}

func (c Config) JobMaxRetries() int {
	return c.jobMaxRetries
}

func (c Config) JobRetryInitialDelay() time.Duration {
	return c.jobRetryInitialDelay
}

func (c Config) JobRetryMaxDelay() time.Duration {
	return c.jobRetryMaxDelay
}

func (c Config) JobRetryBackoffMultiplier() float64 {
	return c.jobRetryBackoffMultiplier
}

func (c Config) HttpPort() int {
	return c.httpPort
}

func (c Config) BadgerDataDir() string {
	return c.badgerDataDir
}

func (c Config) MaxConcurrentSessions() int {
	return c.maxConcurrentSessions
}

func (c Config) RobotsCacheTtl() time.Duration {
	return c.robotsCacheTtl
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) IndexerUrl() string {
	return c.indexerUrl
}

func (c Config) IndexerIndexName() string {
	return c.indexerIndexName
}

func (c Config) MongoUri() string {
	return c.mongoUri
}
