package fetcher

import (
	"context"
	"strings"
	"time"
)

/*
SPA detection & rendering

After a direct fetch succeeds, the fetcher checks whether the returned HTML
looks like an empty client-side-rendered shell. If it does, and rendering is
enabled, a Renderer is asked to produce the fully executed DOM instead. A
failed render never fails the fetch: the original content is kept and the
caller proceeds with whatever was fetched directly.
*/

// spaMarkers are framework fingerprints that show up in the raw HTML of a
// client-rendered shell before JavaScript has run.
var spaMarkers = []string{
	"data-reactroot",
	"__next_data__",
	"/_nuxt/",
	"ng-app",
	`id="app"`,
	`id="root"`,
}

// RenderOptions configures a single render call.
type RenderOptions struct {
	WaitForIdle time.Duration
	// UserAgent, when non-empty, overrides the browser's default UA string
	// so a rendered fetch still presents the crawler's configured identity.
	UserAgent string
}

// Renderer executes JavaScript against a page and returns the resulting HTML.
// The HTTP-backed implementation (Browserless) and the in-process chromedp
// implementation both satisfy this port identically.
type Renderer interface {
	Render(ctx context.Context, rawUrl string, opts RenderOptions) (string, error)
}

// SetRenderer wires a Renderer into the fetcher and turns on SPA rendering.
// A fetcher with no Renderer set never attempts to render.
func (h *HtmlFetcher) SetRenderer(renderer Renderer, opts RenderOptions) {
	h.renderer = renderer
	h.renderOpts = opts
}

// isSpaPage reports whether body looks like an unrendered client-side shell:
// a known framework marker present alongside a near-empty visible body.
func isSpaPage(body []byte) bool {
	isSpa, _, _ := DetectSpa(body)
	return isSpa
}

// DetectSpa is the exported, fuller-detail form of isSpaPage backing the
// §6.1 POST /api/spa/detect endpoint: it reports which framework markers
// matched and a heuristic 0-100 confidence rather than a plain bool. §9
// leaves the confidence scoring open; this scores on marker count plus the
// sparse-body signal.
func DetectSpa(body []byte) (isSpa bool, indicators []string, confidence int) {
	lower := strings.ToLower(string(body))

	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			indicators = append(indicators, marker)
		}
	}
	if len(indicators) == 0 {
		return false, indicators, 0
	}

	sparse := bodyTextIsSparse(lower)
	if !sparse {
		return false, indicators, 20
	}

	confidence = 60 + 10*len(indicators)
	if confidence > 100 {
		confidence = 100
	}
	return true, indicators, confidence
}

// bodyTextIsSparse is a crude text/markup ratio check: an SPA shell's <body>
// is mostly script tags and empty mount-point divs.
func bodyTextIsSparse(lowerHTML string) bool {
	bodyStart := strings.Index(lowerHTML, "<body")
	if bodyStart == -1 {
		return true
	}
	bodyContent := lowerHTML[bodyStart:]

	visibleLen := 0
	inTag := false
	for _, r := range bodyContent {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag && r != '\n' && r != '\t' && r != ' ':
			visibleLen++
		}
	}

	return visibleLen < 200
}

// renderIfSpa calls the configured Renderer when body looks like an SPA
// shell. It never returns an error: a failed or disabled render leaves body
// untouched.
func (h *HtmlFetcher) renderIfSpa(ctx context.Context, rawUrl string, body []byte) []byte {
	if h.renderer == nil || !isSpaPage(body) {
		return body
	}

	rendered, err := h.renderer.Render(ctx, rawUrl, h.renderOpts)
	if err != nil {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"HtmlFetcher.renderIfSpa",
			mapFetchErrorToMetadataCause(&FetchError{Cause: ErrCauseNetworkFailure}),
			err.Error(),
			nil,
		)
		return body
	}

	return []byte(rendered)
}
