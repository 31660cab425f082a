package store

/*
IndexingStore decorates Store with a best-effort push to an external search
indexer over plain net/http, matching the teacher's own fetch client rather
than adding an indexer SDK. §9's Open Question resolution keeps the indexer
external and opaque: this package only POSTs a JSON document and does not
interpret the response body.
*/

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/crawlengine"
)

// IndexingStore wraps a *Store and additionally pushes newly-downloaded
// pages to an external indexer. A push failure is logged, never returned —
// the crawl and the canonical store write must succeed independent of the
// indexer's availability.
type IndexingStore struct {
	*Store
	indexerUrl       string
	indexerIndexName string
	httpClient       *http.Client
	logger           crawlengine.Logger
}

// NewIndexingStore wraps store with indexer push. indexerUrl == "" disables
// the push entirely (StoreCrawlResult behaves exactly like *Store).
func NewIndexingStore(s *Store, indexerUrl, indexerIndexName string, logger crawlengine.Logger) *IndexingStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &IndexingStore{
		Store:            s,
		indexerUrl:       indexerUrl,
		indexerIndexName: indexerIndexName,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		logger:           logger,
	}
}

var _ crawlengine.StoreWriter = (*IndexingStore)(nil)

type indexerDocument struct {
	Index string `json:"index"`
	Page  IndexedPage `json:"page"`
}

func (s *IndexingStore) StoreCrawlResult(sessionId string, result crawlengine.CrawlResult) (string, error) {
	id, err := s.Store.StoreCrawlResult(sessionId, result)
	if err != nil {
		return id, err
	}

	if s.indexerUrl == "" || result.CrawlStatus != crawlengine.StatusDownloaded {
		return id, nil
	}

	page, getErr := s.Store.GetIndexedPage(id)
	if getErr != nil {
		s.logger.Warn(sessionId, "indexer push skipped: "+getErr.Error())
		return id, nil
	}

	if pushErr := s.push(*page); pushErr != nil {
		s.logger.Warn(sessionId, "indexer push failed: "+pushErr.Error())
	}
	return id, nil
}

func (s *IndexingStore) push(page IndexedPage) error {
	payload, err := json.Marshal(indexerDocument{Index: s.indexerIndexName, Page: page})
	if err != nil {
		return fmt.Errorf("encode indexer document: %w", err)
	}

	resp, err := s.httpClient.Post(s.indexerUrl, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post to indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Info(string, string)  {}
func (noopLogger) Warn(string, string)  {}
func (noopLogger) Error(string, string) {}
