package fetcher

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

/*
ChromedpRenderer is the in-process fallback Renderer, used when no
BROWSERLESS_URL is configured. It drives a headless Chrome instance directly
via chromedp instead of delegating to an external rendering service.
*/

// ChromedpRenderer renders a page in a locally-launched headless browser.
type ChromedpRenderer struct {
	allocatorOpts []chromedp.ExecAllocatorOption
}

// NewChromedpRenderer builds a ChromedpRenderer with a sandboxed headless
// allocator configuration.
func NewChromedpRenderer() ChromedpRenderer {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1366, 768),
	)
	return ChromedpRenderer{allocatorOpts: opts}
}

// Compile-time interface check
var _ Renderer = (*ChromedpRenderer)(nil)

func (r *ChromedpRenderer) Render(ctx context.Context, rawUrl string, opts RenderOptions) (string, error) {
	allocatorOpts := r.allocatorOpts
	if opts.UserAgent != "" {
		allocatorOpts = append(append([]chromedp.ExecAllocatorOption{}, allocatorOpts...), chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var renderedHTML string
	tasks := chromedp.Tasks{
		chromedp.Navigate(rawUrl),
		chromedp.Sleep(opts.WaitForIdle),
		chromedp.OuterHTML("html", &renderedHTML, chromedp.ByQuery),
	}

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return "", fmt.Errorf("chromedp: render %s: %w", rawUrl, err)
	}

	return renderedHTML, nil
}
