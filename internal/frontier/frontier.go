package frontier

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
*/

import (
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

// urlInfo is the bookkeeping the frontier keeps per canonical URL, independent
// of which queue (ready-by-depth or delayed-retry) currently holds it.
type urlInfo struct {
	depth      int
	retryCount int
}

// retryEntry is a URL waiting out a delay before re-entering the ready side.
type retryEntry struct {
	token       CrawlToken
	readyAt     time.Time
	retryCount  int
	failureType string
	reason      string
}

// CrawlFrontier is the concrete Frontier: a BFS-ordered ready side (one FIFO
// queue per depth level, always dequeuing from the lowest non-empty depth)
// plus a delayed-retry side kept in insertion order and scanned in full for
// due entries, both behind a single mutex.
type CrawlFrontier struct {
	mu sync.Mutex

	cfg config.Config

	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	visited       Set[string]
	urlInfoByKey  map[string]urlInfo
	lastVisitByDomain map[string]time.Time

	retries []retryEntry
}

// NewCrawlFrontier constructs an empty frontier. Call Init before use.
func NewCrawlFrontier() CrawlFrontier {
	return CrawlFrontier{}
}

// Init resets the frontier against the given config's scope limits.
func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cfg = cfg
	f.queuesByDepth = make(map[int]*FIFOQueue[CrawlToken])
	f.visited = NewSet[string]()
	f.urlInfoByKey = make(map[string]urlInfo)
	f.lastVisitByDomain = make(map[string]time.Time)
	f.retries = nil
}

func canonicalKey(u url.URL) string {
	return urlutil.Canonicalize(u).String()
}

// Submit admits a discovered or seed URL into the ready side, honoring
// MaxDepth/MaxPages and deduplicating against the visited set. It is a no-op
// if the URL has already been seen, or the scope/page-count limits reject it.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()
	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}

	key := canonicalKey(candidate.TargetURL())
	if f.visited.Contains(key) {
		return
	}
	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.visited.Size() >= maxPages {
		return
	}

	f.visited.Add(key)
	f.urlInfoByKey[key] = urlInfo{depth: depth, retryCount: 0}

	q, ok := f.queuesByDepth[depth]
	if !ok {
		q = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = q
	}
	q.Enqueue(NewCrawlToken(candidate.TargetURL(), depth))
}

// minNonEmptyDepth scans every known depth bucket for the smallest one that
// still has pending entries. Gaps (an exhausted or never-created depth) are
// skipped rather than causing currentDepth to advance permanently, since a
// later discovery can still refill a lower depth (see ScheduleRetry / a
// crawl branch that completes out of order).
func (f *CrawlFrontier) minNonEmptyDepth() int {
	min := -1
	for d, q := range f.queuesByDepth {
		if q == nil || q.Size() == 0 {
			continue
		}
		if min == -1 || d < min {
			min = d
		}
	}
	return min
}

// Dequeue pops the next URL in strict BFS order: every entry at a given
// depth is handed out before any entry at a greater depth, regardless of
// submission order across depths.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.promoteReadyRetriesLocked(time.Now())

	depth := f.minNonEmptyDepth()
	if depth == -1 {
		return CrawlToken{}, false
	}

	q := f.queuesByDepth[depth]
	token, ok := q.Dequeue()
	if ok {
		f.lastVisitByDomain[token.URL().Host] = time.Now()
	}
	return token, ok
}

// Next is the spec-facing alias for Dequeue: promote due retries, then pop.
func (f *CrawlFrontier) Next() (CrawlToken, bool) {
	return f.Dequeue()
}

// ScheduleRetry re-admits a previously-failed URL after delay, preserving its
// depth and bumping retryCount. It does not re-check visited/MaxPages since
// the URL was already admitted once.
func (f *CrawlFrontier) ScheduleRetry(u url.URL, newRetryCount int, reason, failureType string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := canonicalKey(u)
	info := f.urlInfoByKey[key]
	info.retryCount = newRetryCount
	f.urlInfoByKey[key] = info

	f.retries = append(f.retries, retryEntry{
		token:       NewCrawlToken(u, info.depth),
		readyAt:     time.Now().Add(delay),
		retryCount:  newRetryCount,
		failureType: failureType,
		reason:      reason,
	})
}

// promoteReadyRetriesLocked moves every retry entry whose readyAt has
// elapsed back into its depth's ready queue. Caller must hold f.mu.
func (f *CrawlFrontier) promoteReadyRetriesLocked(now time.Time) {
	if len(f.retries) == 0 {
		return
	}

	remaining := f.retries[:0]
	for _, entry := range f.retries {
		if now.Before(entry.readyAt) {
			remaining = append(remaining, entry)
			continue
		}
		depth := entry.token.Depth()
		q, ok := f.queuesByDepth[depth]
		if !ok {
			q = NewFIFOQueue[CrawlToken]()
			f.queuesByDepth[depth] = q
		}
		q.Enqueue(entry.token)
	}
	f.retries = remaining
}

// HasReadyURLs reports whether Dequeue would currently return something,
// after promoting any due retries.
func (f *CrawlFrontier) HasReadyURLs() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.promoteReadyRetriesLocked(time.Now())
	return f.minNonEmptyDepth() != -1
}

// PendingRetryCount returns how many URLs are waiting out a retry delay.
func (f *CrawlFrontier) PendingRetryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retries)
}

// Size returns the total number of ready (non-retry) URLs across all depths.
func (f *CrawlFrontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, q := range f.queuesByDepth {
		if q != nil {
			total += q.Size()
		}
	}
	return total
}

// RetryQueueSize is an alias for PendingRetryCount, matching the spec's
// naming for the delayed side of the frontier.
func (f *CrawlFrontier) RetryQueueSize() int {
	return f.PendingRetryCount()
}

// MarkVisited records a URL as visited without enqueuing it, e.g. when a
// URL is rejected post-admission (robots-blocked) but must never be
// re-submitted.
func (f *CrawlFrontier) MarkVisited(u url.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited.Add(canonicalKey(u))
}

// IsVisited reports whether u (in canonical form) has ever been admitted.
func (f *CrawlFrontier) IsVisited(u url.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Contains(canonicalKey(u))
}

// LastVisitTime returns the last time a URL on domain was dequeued, used by
// the Domain Manager to enforce crawl-delay. The zero Time means never.
func (f *CrawlFrontier) LastVisitTime(domain string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVisitByDomain[domain]
}

// GetQueuedURLInfo returns the depth/retryCount recorded for u, and whether
// it has ever been submitted.
func (f *CrawlFrontier) GetQueuedURLInfo(u url.URL) (depth int, retryCount int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, found := f.urlInfoByKey[canonicalKey(u)]
	if !found {
		return 0, 0, false
	}
	return info.depth, info.retryCount, true
}

// IsDepthExhausted reports whether depth has no pending ready entries
// (never created, or created and fully drained). Negative depths are
// always exhausted since they cannot exist.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if depth < 0 {
		return true
	}
	q, ok := f.queuesByDepth[depth]
	if !ok || q == nil {
		return true
	}
	return q.Size() == 0
}

// CurrentMinDepth returns the smallest depth with pending ready entries, or
// -1 if the frontier has nothing left to hand out.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minNonEmptyDepth()
}

// VisitedCount returns the number of unique (canonicalized) URLs ever
// admitted, independent of dequeue/retry state.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}
