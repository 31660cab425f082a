package store

import "time"

/*
IndexedPage and CrawlLog are the two badgerhold-backed collections this
package owns (§6.3). Grounded on ternarybob-quaero's internal/storage/badger
models (Document/struct-per-collection layering) and
internal/storage.LocalSink's content-addressed id scheme — adapted here for
a document store rather than a flat file tree, since listByDomain/
listByStatus/dedup-by-canonicalUrl cannot be expressed against a file tree.
*/

// IndexedPage is the canonical, deduplicated record for one crawled URL.
// ID is a content-addressed hash of CanonicalURL, so repeated crawls of the
// same URL overwrite rather than duplicate.
type IndexedPage struct {
	ID           string `boltholdKey:"ID"`
	CanonicalURL string `boltholdIndex:"CanonicalURL"`
	Domain       string `boltholdIndex:"Domain"`
	Status       string `boltholdIndex:"Status"`

	FinalURL    string
	HTTPStatus  int
	ContentType string
	Title       string
	Description string
	TextContent string

	OutboundLinks []string

	CreatedAt time.Time
	UpdatedAt time.Time

	IndexedAt    time.Time
	IndexPending bool
}

// CrawlLog is an append-only per-attempt record, one row per worker
// attempt against a URL (success, failure, or retry), kept for audit/replay
// independent of IndexedPage's latest-wins semantics.
type CrawlLog struct {
	ID           string `boltholdKey:"ID"`
	SessionId    string `boltholdIndex:"SessionId"`
	URL          string
	Domain       string `boltholdIndex:"Domain"`
	CrawlStatus  string
	HTTPStatus   int
	FailureType  string
	ErrorMessage string
	RetryCount   int
	OccurredAt   time.Time
}
