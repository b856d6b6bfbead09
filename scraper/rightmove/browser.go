package rightmove

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"rightmove-scraper/utils"
)

// BrowserFetcher renders listing pages in headless Chrome and returns the
// resulting document. It is an alternative to the plain HTTP client for
// pages that only assemble their markup client-side.
type BrowserFetcher struct {
	logger  *utils.Logger
	timeout time.Duration

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowserFetcher starts a headless browser. Close must be called to shut it down.
func NewBrowserFetcher(chromeBin, userAgent string, timeout time.Duration, logger *utils.Logger) (*BrowserFetcher, error) {
	if chromeBin == "" {
		chromeBin = lookupChrome()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &BrowserFetcher{
		logger:        logger,
		timeout:       timeout,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Fetch opens url in a new tab and returns the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: render %s: %w", url, err)
	}

	b.logger.Debug("[browser] Rendered %s (%d bytes)", url, len(html))
	return &Response{
		URL:        url,
		FinalURL:   location,
		StatusCode: 200,
		Body:       []byte(html),
	}, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

// chromeCandidates are tried in order: names on PATH, then install locations.
var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	"/opt/google/chrome/google-chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// lookupChrome returns the first Chrome or Chromium executable found, or ""
// to let chromedp fall back to its own search.
func lookupChrome() string {
	for _, c := range chromeCandidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}
