package store

/*
Package store is the badgerhold-backed Canonical Store Writer (§4.12),
replacing internal/storage.LocalSink's flat markdown files with typed
upserts over an embedded document store. Grounded on
ternarybob-quaero/internal/storage/badger's BadgerDB wrapper (Open/Store/
Close) and DocumentStorage's Upsert/Find/Count call shapes, plus LogStorage's
timestamp+atomic-sequence key scheme for append-only rows. The
content-addressed id (hash of the canonical URL) is carried over from
internal/storage.LocalSink's filename scheme (pkg/hashutil).

Libraries: github.com/dgraph-io/badger/v4 (the embedded engine) +
github.com/timshannon/badgerhold/v4 (the typed layer on top of it).
*/

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/crawlengine"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
	"github.com/timshannon/badgerhold/v4"
)

var logSequence atomic.Uint64

// Store wraps a badgerhold.Store as the Canonical Store Writer. It
// implements internal/crawlengine.StoreWriter.
type Store struct {
	db *badgerhold.Store
}

// Open creates dataDir if needed and opens (or creates) the badger database
// inside it.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = dataDir
	opts.ValueDir = dataDir
	opts.Logger = nil

	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying badgerhold handle so other storage-layer
// packages (internal/jobstore) can open additional typed collections
// against the same badger database rather than opening a second process
// against the same data directory, which badger's file lock forbids.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// Compile-time interface check.
var _ crawlengine.StoreWriter = (*Store)(nil)

func pageId(canonicalURL string) (string, error) {
	full, err := hashutil.HashBytes([]byte(canonicalURL), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return "", err
	}
	return full[:16], nil
}

// StoreCrawlResult upserts result as the latest IndexedPage for its
// canonical URL (dedup-by-canonicalUrl) and appends an immutable CrawlLog
// row for the attempt. Returns the page id.
func (s *Store) StoreCrawlResult(sessionId string, result crawlengine.CrawlResult) (string, error) {
	canonicalURL := urlutil.Canonicalize(result.Url).String()
	id, err := pageId(canonicalURL)
	if err != nil {
		return "", fmt.Errorf("store: hash canonical url: %w", err)
	}

	var existing IndexedPage
	createdAt := time.Now()
	if err := s.db.Get(id, &existing); err == nil {
		createdAt = existing.CreatedAt
	} else if !errors.Is(err, badgerhold.ErrNotFound) {
		return "", fmt.Errorf("store: read existing page: %w", err)
	}

	page := IndexedPage{
		ID:            id,
		CanonicalURL:  canonicalURL,
		Domain:        result.Domain,
		Status:        string(result.CrawlStatus),
		FinalURL:      result.FinalUrl.String(),
		HTTPStatus:    result.HttpStatus,
		ContentType:   result.ContentType,
		Title:         result.Title,
		Description:   result.Description,
		TextContent:   result.TextContent,
		OutboundLinks: result.OutboundLinks,
		CreatedAt:     createdAt,
		UpdatedAt:     time.Now(),
		IndexPending:  result.CrawlStatus == crawlengine.StatusDownloaded,
	}

	if err := s.db.Upsert(id, &page); err != nil {
		return "", fmt.Errorf("store: upsert page: %w", err)
	}

	if err := s.appendCrawlLog(sessionId, result); err != nil {
		return id, fmt.Errorf("store: append crawl log: %w", err)
	}

	return id, nil
}

func (s *Store) appendCrawlLog(sessionId string, result crawlengine.CrawlResult) error {
	seq := logSequence.Add(1)
	key := fmt.Sprintf("%s_%d_%d", sessionId, time.Now().UnixNano(), seq)

	entry := CrawlLog{
		ID:           key,
		SessionId:    sessionId,
		URL:          result.Url.String(),
		Domain:       result.Domain,
		CrawlStatus:  string(result.CrawlStatus),
		HTTPStatus:   result.HttpStatus,
		FailureType:  string(result.FailureType),
		ErrorMessage: result.ErrorMessage,
		RetryCount:   result.RetryCount,
		OccurredAt:   time.Now(),
	}
	return s.db.Insert(key, &entry)
}

// GetIndexedPage looks up a page by its content-addressed id.
func (s *Store) GetIndexedPage(id string) (*IndexedPage, error) {
	var page IndexedPage
	if err := s.db.Get(id, &page); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("store: page not found: %s", id)
		}
		return nil, fmt.Errorf("store: get page: %w", err)
	}
	return &page, nil
}

// ListByDomain returns every indexed page for domain.
func (s *Store) ListByDomain(domain string) ([]IndexedPage, error) {
	var pages []IndexedPage
	if err := s.db.Find(&pages, badgerhold.Where("Domain").Eq(domain)); err != nil {
		return nil, fmt.Errorf("store: list by domain: %w", err)
	}
	return pages, nil
}

// ListByStatus returns every indexed page in the given crawl status.
func (s *Store) ListByStatus(status string) ([]IndexedPage, error) {
	var pages []IndexedPage
	if err := s.db.Find(&pages, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("store: list by status: %w", err)
	}
	return pages, nil
}

// TotalCount returns the number of distinct indexed pages.
func (s *Store) TotalCount() (int, error) {
	count, err := s.db.Count(&IndexedPage{}, nil)
	if err != nil {
		return 0, fmt.Errorf("store: count pages: %w", err)
	}
	return int(count), nil
}

// DeleteByUrl removes the IndexedPage for the given canonical URL, if any.
func (s *Store) DeleteByUrl(canonicalURL string) error {
	id, err := pageId(canonicalURL)
	if err != nil {
		return err
	}
	if err := s.db.Delete(id, &IndexedPage{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("store: delete by url: %w", err)
	}
	return nil
}

// ListCrawlLogsByDomain returns every CrawlLog row recorded for domain.
func (s *Store) ListCrawlLogsByDomain(domain string) ([]CrawlLog, error) {
	var logs []CrawlLog
	if err := s.db.Find(&logs, badgerhold.Where("Domain").Eq(domain).SortBy("OccurredAt").Reverse()); err != nil {
		return nil, fmt.Errorf("store: list crawl logs by domain: %w", err)
	}
	return logs, nil
}

// ListCrawlLogsByURL returns every CrawlLog row recorded for the given
// (non-canonicalized, as-crawled) URL.
func (s *Store) ListCrawlLogsByURL(rawURL string) ([]CrawlLog, error) {
	var logs []CrawlLog
	if err := s.db.Find(&logs, badgerhold.Where("URL").Eq(rawURL).SortBy("OccurredAt").Reverse()); err != nil {
		return nil, fmt.Errorf("store: list crawl logs by url: %w", err)
	}
	return logs, nil
}

// DeleteByDomain removes every IndexedPage belonging to domain.
func (s *Store) DeleteByDomain(domain string) error {
	if err := s.db.DeleteMatching(&IndexedPage{}, badgerhold.Where("Domain").Eq(domain)); err != nil {
		return fmt.Errorf("store: delete by domain: %w", err)
	}
	return nil
}
