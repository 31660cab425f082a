package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

/*
BrowserlessRenderer implements Renderer as a plain HTTP POST against a
Browserless (https://browserless.io) `/content` endpoint, matching the
teacher's own fetch client (net/http, no extra HTTP stack) rather than
introducing a second one just for rendering.
*/

type browserlessRequest struct {
	URL           string `json:"url"`
	WaitForIdleMs int64  `json:"waitForTimeout,omitempty"`
}

// BrowserlessRenderer renders a page by delegating to an external Browserless
// instance. It is the Renderer used when BROWSERLESS_URL is configured.
type BrowserlessRenderer struct {
	endpoint   string
	httpClient *http.Client
}

// NewBrowserlessRenderer builds a BrowserlessRenderer posting to endpoint
// (typically `$BROWSERLESS_URL/content`).
func NewBrowserlessRenderer(endpoint string, httpClient *http.Client) BrowserlessRenderer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return BrowserlessRenderer{endpoint: endpoint, httpClient: httpClient}
}

// Compile-time interface check
var _ Renderer = (*BrowserlessRenderer)(nil)

func (b *BrowserlessRenderer) Render(ctx context.Context, rawUrl string, opts RenderOptions) (string, error) {
	payload, err := json.Marshal(browserlessRequest{
		URL:           rawUrl,
		WaitForIdleMs: opts.WaitForIdle.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("browserless: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("browserless: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("browserless: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("browserless: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("browserless: status %d: %s", resp.StatusCode, string(body))
	}

	return string(body), nil
}
