package robots

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// DefaultCacheTTL is how long a host's mapped ruleSet is trusted before
// Decide re-fetches robots.txt for it. Overridable via SetCacheTTL.
const DefaultCacheTTL = 24 * time.Hour

// Robot evaluates crawl permission for a URL under the robots.txt of its
// host, fetching and caching as needed.
type Robot interface {
	Init(userAgent string)
	InitWithCache(userAgent string, ruleCache cache.Cache)
	Decide(target url.URL) (Decision, *RobotsError)
}

// Compile-time interface check
var _ Robot = (*CachedRobot)(nil)

type cachedRuleSet struct {
	rules     ruleSet
	expiresAt time.Time
}

// robotsState holds CachedRobot's mutable, non-comparable state behind a
// pointer so CachedRobot itself stays a comparable value type (tests compare
// it against a zero-value literal with ==).
type robotsState struct {
	mu    sync.Mutex
	rules map[string]cachedRuleSet
}

// CachedRobot is the default Robot: one RobotsFetcher per instance, with a
// per-host ruleSet cache on top honoring cacheTTL.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	cacheTTL     time.Duration
	fetcher      *RobotsFetcher
	state        *robotsState
}

// NewCachedRobot builds a CachedRobot. Init or InitWithCache must be called
// before Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		metadataSink: metadataSink,
		cacheTTL:     DefaultCacheTTL,
	}
}

// SetCacheTTL overrides the default 24h ruleSet cache lifetime. Takes effect
// on the next Decide call.
func (r *CachedRobot) SetCacheTTL(ttl time.Duration) {
	r.cacheTTL = ttl
}

func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

func (r *CachedRobot) InitWithCache(userAgent string, ruleCache cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, ruleCache)
	if r.cacheTTL == 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	r.state = &robotsState{rules: make(map[string]cachedRuleSet)}
}

// Decide evaluates whether target may be crawled under its host's
// robots.txt, fetching (and caching) the rules if needed.
func (r *CachedRobot) Decide(target url.URL) (Decision, *RobotsError) {
	scheme := target.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := target.Hostname()

	rules, err := r.ruleSetFor(scheme, host)
	if err != nil {
		return Decision{}, err
	}

	return evaluateDecision(rules, target), nil
}

func (r *CachedRobot) ruleSetFor(scheme, host string) (ruleSet, *RobotsError) {
	r.state.mu.Lock()
	if cached, ok := r.state.rules[host]; ok && time.Now().Before(cached.expiresAt) {
		r.state.mu.Unlock()
		return cached.rules, nil
	}
	r.state.mu.Unlock()

	result, err := r.fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		return ruleSet{}, err
	}

	rules := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	r.state.mu.Lock()
	r.state.rules[host] = cachedRuleSet{rules: rules, expiresAt: time.Now().Add(r.cacheTTL)}
	r.state.mu.Unlock()

	return rules, nil
}

// evaluateDecision applies allow/disallow precedence: the longest matching
// pattern wins; ties favor Allow. A host with no groups, or none matching
// this user agent, defaults to allowed.
func evaluateDecision(rules ruleSet, target url.URL) Decision {
	path := target.Path
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	crawlDelay := time.Duration(0)
	if d := rules.CrawlDelay(); d != nil {
		crawlDelay = *d
	}

	if !rules.hasGroups {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet, CrawlDelay: crawlDelay}
	}
	if !rules.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched, CrawlDelay: crawlDelay}
	}

	allowLen, allowMatched := bestMatchLength(rules.AllowRules(), path)
	disallowLen, disallowMatched := bestMatchLength(rules.DisallowRules(), path)

	if !allowMatched && !disallowMatched {
		return Decision{Url: target, Allowed: true, Reason: NoMatchingRules, CrawlDelay: crawlDelay}
	}

	allowed := allowLen >= disallowLen
	reason := DisallowedByRobots
	if allowed {
		reason = AllowedByRobots
	}
	return Decision{Url: target, Allowed: allowed, Reason: reason, CrawlDelay: crawlDelay}
}

// bestMatchLength returns the length of the longest rule pattern matching
// path, and whether any rule matched at all.
func bestMatchLength(rules []pathRule, path string) (int, bool) {
	best := -1
	matched := false
	for _, rule := range rules {
		if matchesPath(rule.Prefix(), path) {
			matched = true
			if len(rule.Prefix()) > best {
				best = len(rule.Prefix())
			}
		}
	}
	return best, matched
}

// matchesPath implements robots.txt pattern matching: "*" matches any
// sequence of characters, a trailing "$" anchors the match to the end of
// path. The pattern always anchors at the start of path.
func matchesPath(pattern, path string) bool {
	anchoredAtEnd := strings.HasSuffix(pattern, "$")
	if anchoredAtEnd {
		pattern = pattern[:len(pattern)-1]
	}

	segments := strings.Split(pattern, "*")
	idx := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		pos := strings.Index(path[idx:], segment)
		if pos == -1 {
			return false
		}
		if i == 0 && pos != 0 {
			return false
		}
		idx += pos + len(segment)
	}

	if anchoredAtEnd && idx != len(path) {
		return false
	}
	return true
}
