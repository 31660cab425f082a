package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/crawlengine"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/logbus"
)

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var req addSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "malformed JSON body", "INVALID_REQUEST")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		sendError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	seed, err := url.Parse(req.URL)
	if err != nil || seed.Host == "" {
		sendError(w, http.StatusBadRequest, "url must be an absolute URL", "INVALID_REQUEST")
		return
	}

	maxPages := req.MaxPages
	if maxPages == 0 {
		maxPages = 1000
	}
	maxDepth := req.MaxDepth
	if maxDepth == 0 {
		maxDepth = 3
	}

	cfg := s.baseSessionConfig
	cfg.MaxPages = maxPages
	cfg.MaxDepth = maxDepth
	cfg.RestrictToSeedDomain = boolOrDefault(req.RestrictToSeedDomain, true)
	cfg.FollowRedirects = boolOrDefault(req.FollowRedirects, true)
	cfg.MaxRedirects = intOrDefault(req.MaxRedirects, 10)
	cfg.SpaRenderingEnabled = boolOrDefault(req.SpaRenderingEnabled, true)
	cfg.IncludeFullContent = req.IncludeFullContent
	if req.BrowserlessUrl != "" {
		cfg.BrowserlessUrl = req.BrowserlessUrl
	}

	sessionId, err := s.sessions.StartCrawl(r.Context(), *seed, cfg, req.Force)
	if err != nil {
		sendError(w, http.StatusServiceUnavailable, err.Error(), "RESOURCE_EXHAUSTED")
		return
	}

	sendSuccess(w, http.StatusOK, addSiteResponseData{
		URL:                  req.URL,
		SessionId:            sessionId,
		Status:               "queued",
		MaxPages:             cfg.MaxPages,
		MaxDepth:             cfg.MaxDepth,
		RestrictToSeedDomain: cfg.RestrictToSeedDomain,
		FollowRedirects:      cfg.FollowRedirects,
		MaxRedirects:         cfg.MaxRedirects,
		Force:                req.Force,
		SpaRenderingEnabled:  cfg.SpaRenderingEnabled,
		IncludeFullContent:   cfg.IncludeFullContent,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionId := q.Get("sessionId")
	if sessionId == "" {
		sendError(w, http.StatusBadRequest, "sessionId is required", "INVALID_REQUEST")
		return
	}

	state, err := s.sessions.GetStatus(sessionId)
	if err != nil {
		sendError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
		return
	}
	results, err := s.sessions.GetResults(sessionId)
	if err != nil {
		sendError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
		return
	}

	var successful, failed, linksFound int
	for _, result := range results {
		switch result.CrawlStatus {
		case crawlengine.StatusDownloaded:
			successful++
			linksFound += len(result.OutboundLinks)
		case crawlengine.StatusFailed:
			failed++
		}
	}
	successRate := 0.0
	if attempted := successful + failed; attempted > 0 {
		successRate = float64(successful) / float64(attempted)
	}

	data := statusResponseData{
		SessionId:    sessionId,
		IsRunning:    state == crawlengine.StateRunning,
		TotalCrawled: len(results),
		LastUpdate:   time.Now(),
		Statistics: statusStatistics{
			SuccessfulCrawls: successful,
			FailedCrawls:     failed,
			TotalLinksFound:  linksFound,
			SuccessRate:      successRate,
		},
	}

	if q.Get("results") == "true" {
		maxResults, _ := strconv.Atoi(q.Get("maxResults"))
		if maxResults > 0 && maxResults < len(results) {
			results = results[:maxResults]
		}
		data.Results = results
	}

	sendSuccess(w, http.StatusOK, data)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	domain := q.Get("domain")
	rawURL := q.Get("url")

	switch {
	case domain != "":
		logs, err := s.store.ListCrawlLogsByDomain(domain)
		if err != nil {
			sendError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
			return
		}
		sendSuccess(w, http.StatusOK, logs)
	case rawURL != "":
		logs, err := s.store.ListCrawlLogsByURL(rawURL)
		if err != nil {
			sendError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
			return
		}
		sendSuccess(w, http.StatusOK, logs)
	default:
		sendError(w, http.StatusBadRequest, "either domain or url is required", "INVALID_REQUEST")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		sendError(w, http.StatusBadRequest, "q is required", "INVALID_REQUEST")
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 || page > 1000 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if s.indexerUrl == "" {
		sendError(w, http.StatusServiceUnavailable, "search indexer is not configured", "DEPENDENCY_UNAVAILABLE")
		return
	}

	target := fmt.Sprintf("%s?q=%s&page=%d&limit=%d", s.indexerUrl, url.QueryEscape(query), page, limit)
	resp, err := s.httpClient.Get(target)
	if err != nil {
		sendError(w, http.StatusServiceUnavailable, "search indexer unreachable: "+err.Error(), "DEPENDENCY_UNAVAILABLE")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sendError(w, http.StatusServiceUnavailable, fmt.Sprintf("search indexer returned status %d", resp.StatusCode), "DEPENDENCY_UNAVAILABLE")
		return
	}

	var data searchResponseData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		sendError(w, http.StatusServiceUnavailable, "search indexer returned malformed response", "DEPENDENCY_UNAVAILABLE")
		return
	}
	sendSuccess(w, http.StatusOK, data)
}

func (s *Server) handleSpaDetect(w http.ResponseWriter, r *http.Request) {
	var req spaDetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "malformed JSON body", "INVALID_REQUEST")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		sendError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	timeout := 10 * time.Second
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid url", "INVALID_REQUEST")
		return
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		sendSuccess(w, http.StatusOK, spaDetectResponseData{Success: false})
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	isSpa, indicators, confidence := fetcher.DetectSpa(body)

	sendSuccess(w, http.StatusOK, spaDetectResponseData{
		Success:        true,
		HTTPStatusCode: resp.StatusCode,
		ContentType:    resp.Header.Get("Content-Type"),
		ContentSize:    len(body),
		SpaDetection: spaDetectionData{
			IsSpa:      isSpa,
			Indicators: indicators,
			Confidence: confidence,
		},
		ContentPreview: preview(string(body)),
	})
}

func (s *Server) handleSpaRender(w http.ResponseWriter, r *http.Request) {
	var req spaRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "malformed JSON body", "INVALID_REQUEST")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		sendError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	timeout := 30 * time.Second
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var content string
	renderingMethod := "direct_fetch"

	if s.renderer != nil {
		rendered, err := s.renderer.Render(ctx, req.URL, fetcher.RenderOptions{WaitForIdle: 500 * time.Millisecond})
		if err == nil {
			content = rendered
			renderingMethod = "headless_browser"
		}
	}

	if content == "" {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
		if err != nil {
			sendError(w, http.StatusBadRequest, "invalid url", "INVALID_REQUEST")
			return
		}
		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			sendError(w, http.StatusServiceUnavailable, "fetch failed: "+err.Error(), "DEPENDENCY_UNAVAILABLE")
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
		content = string(body)
	}

	isSpa, _, _ := fetcher.DetectSpa([]byte(content))

	data := spaRenderResponseData{
		IsSpa:           isSpa,
		RenderingMethod: renderingMethod,
	}
	if req.IncludeFullContent {
		data.Content = content
	} else {
		data.ContentPreview = preview(content)
	}

	sendSuccess(w, http.StatusOK, data)
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if err := logbus.ServeLogStream(s.bus, w, r); err != nil {
		log.Printf("httpapi: /crawl-logs connection ended: %v", err)
	}
}
