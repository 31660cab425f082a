package sessionmgr

/*
Package sessionmgr manages concurrent crawl sessions, each backed by its own
internal/crawlengine.Engine. Grounded on original_source's CrawlerManager
(include/search_engine/crawler/CrawlerManager.h): a mutex-protected session
map, a monotonic session counter, and a background cleanup worker — translated
from std::thread/std::atomic<bool> to a goroutine driven by context.Context,
and from a raw std::unique_ptr<Crawler> map to *crawlengine.Engine.
*/

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rohmanhakim/docs-crawler/internal/crawlengine"
)

// EngineFactory builds a fresh Engine for a new session. The Manager owns
// exactly one Engine per session; shared ports (domain manager, store writer,
// logger, metrics) are closed over by the factory, while per-session state
// (frontier, robots cache) is constructed fresh each call.
type EngineFactory func(sessionId string) *crawlengine.Engine

// session is the Manager's bookkeeping entry for one crawl.
type session struct {
	id         string
	engine     *crawlengine.Engine
	createdAt  time.Time
	completedAt time.Time
	completed  bool
}

// Manager tracks concurrently running crawl sessions, enforces a maximum
// concurrency cap, and reclaims completed sessions after retention elapses.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	newEngine EngineFactory
	maxActive int
	retention time.Duration

	sessionCounter atomic.Uint64

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

// New builds a Manager and starts its cleanup worker. maxActive <= 0 means
// unbounded concurrency; retention is how long a STOPPED session's results
// stay queryable before cleanupWorker evicts it.
func New(newEngine EngineFactory, maxActive int, retention time.Duration) *Manager {
	if retention <= 0 {
		retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:    make(map[string]*session),
		newEngine:   newEngine,
		maxActive:   maxActive,
		retention:   retention,
		stopCleanup: cancel,
		cleanupDone: make(chan struct{}),
	}
	go m.cleanupWorker(ctx)
	return m
}

// generateSessionId mints a session id of a random UUID followed by the
// manager's monotonic counter. The UUID keeps ids unique across restarts; the
// counter suffix shows creation order within one process, but because the
// UUID comes first the ids do not sort in creation order.
func (m *Manager) generateSessionId() string {
	n := m.sessionCounter.Add(1)
	return fmt.Sprintf("%s-%d", uuid.NewString(), n)
}

// StartCrawl creates a new session, seeds it with seedUrl, and starts its
// worker. Returns the new session id.
func (m *Manager) StartCrawl(ctx context.Context, seedUrl url.URL, cfg crawlengine.SessionConfig, force bool) (string, error) {
	m.mu.Lock()
	if m.maxActive > 0 && m.activeCountLocked() >= m.maxActive {
		m.mu.Unlock()
		return "", fmt.Errorf("sessionmgr: max concurrent sessions (%d) reached", m.maxActive)
	}
	sessionId := m.generateSessionId()
	engine := m.newEngine(sessionId)
	s := &session{id: sessionId, engine: engine, createdAt: time.Now()}
	m.sessions[sessionId] = s
	m.mu.Unlock()

	engine.UpdateConfig(cfg)
	engine.AddSeedURL(seedUrl, force)

	if err := engine.Start(ctx, func(results []crawlengine.CrawlResult) {
		m.mu.Lock()
		if entry, ok := m.sessions[sessionId]; ok {
			entry.completed = true
			entry.completedAt = time.Now()
		}
		m.mu.Unlock()
	}); err != nil {
		m.mu.Lock()
		delete(m.sessions, sessionId)
		m.mu.Unlock()
		return "", err
	}

	return sessionId, nil
}

func (m *Manager) activeCountLocked() int {
	count := 0
	for _, s := range m.sessions {
		if !s.completed {
			count++
		}
	}
	return count
}

// GetResults returns the current result snapshot for sessionId.
func (m *Manager) GetResults(sessionId string) ([]crawlengine.CrawlResult, error) {
	s, err := m.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	return s.engine.Results(), nil
}

// GetStatus returns the session's current lifecycle state.
func (m *Manager) GetStatus(sessionId string) (crawlengine.State, error) {
	s, err := m.lookup(sessionId)
	if err != nil {
		return "", err
	}
	return s.engine.State(), nil
}

// StopCrawl signals the session's worker to stop and blocks until it has.
func (m *Manager) StopCrawl(sessionId string) error {
	s, err := m.lookup(sessionId)
	if err != nil {
		return err
	}
	s.engine.Stop()
	return nil
}

// ActiveSessions lists session ids whose worker has not yet completed.
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if !s.completed {
			ids = append(ids, id)
		}
	}
	return ids
}

// ActiveSessionCount mirrors CrawlerManager::getActiveSessionCount.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()
}

func (m *Manager) lookup(sessionId string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionId]
	if !ok {
		return nil, fmt.Errorf("sessionmgr: unknown session %q", sessionId)
	}
	return s, nil
}

// CleanupCompletedSessions removes sessions whose retention window has
// elapsed since completion. Exported so callers (tests, an admin endpoint)
// can trigger an out-of-band sweep without waiting for the worker's tick.
func (m *Manager) CleanupCompletedSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, s := range m.sessions {
		if s.completed && now.Sub(s.completedAt) >= m.retention {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) cleanupWorker(ctx context.Context) {
	defer close(m.cleanupDone)
	interval := m.retention / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupCompletedSessions()
		}
	}
}

// Close stops the cleanup worker. Does not stop active crawl sessions.
func (m *Manager) Close() {
	m.stopCleanup()
	<-m.cleanupDone
}
