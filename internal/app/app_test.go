package app_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/app"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir, err := os.MkdirTemp("", "app-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	seed, err := url.Parse("http://localhost/")
	require.NoError(t, err)
	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithBadgerDataDir(dir).
		WithMaxConcurrentSessions(5).
		Build()
	require.NoError(t, err)

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_NewWiresEveryPort(t *testing.T) {
	a := newTestApp(t)
	require.NotNil(t, a.Store)
	require.NotNil(t, a.JobStore)
	require.NotNil(t, a.Bus)
	require.NotNil(t, a.Sessions)
	require.NotNil(t, a.Server)
}

// TestApp_EndToEndCrawlThroughTheHTTPSurface drives a crawl session entirely
// through the composition root's wiring: POST /api/crawl/add-site starts a
// session against a local static page, then GET /api/crawl/status confirms
// the Canonical Store Writer and Session Manager produced a result.
func TestApp_EndToEndCrawlThroughTheHTTPSurface(t *testing.T) {
	a := newTestApp(t)

	seedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Composition Root</title></head><body><p>ok</p></body></html>`)
	}))
	defer seedServer.Close()

	router := a.Server.Router()

	addReq := httptest.NewRequest(http.MethodPost, "/api/crawl/add-site",
		strings.NewReader(fmt.Sprintf(`{"url":%q}`, seedServer.URL)))
	addRR := httptest.NewRecorder()
	router.ServeHTTP(addRR, addReq)
	require.Equal(t, http.StatusOK, addRR.Code)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		count, err := a.Store.TotalCount()
		require.NoError(t, err)
		if count > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected the Canonical Store Writer to have at least one indexed page")
}
