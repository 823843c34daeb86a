package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hyperifyio/reportbuilder/internal/fetch"
)

// ChromeFactory opens headless Chrome sessions through chromedp.
type ChromeFactory struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// UserAgent defaults to a random browser user agent per session.
	UserAgent string
	// PageTimeout bounds each navigation. Zero means 30s.
	PageTimeout time.Duration
}

// Open starts a browser. The returned session owns the browser process until
// Close is called.
func (f ChromeFactory) Open(ctx context.Context) (Session, error) {
	ua := f.UserAgent
	if ua == "" {
		ua = fetch.RandomUserAgent()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	bctx, cancelBrowser := chromedp.NewContext(actx)
	// an empty Run launches the browser so failures surface here
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	timeout := f.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &chromeSession{ctx: bctx, timeout: timeout, cancel: func() {
		cancelBrowser()
		cancelAlloc()
	}}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
}

// Page navigates to rawURL, waits for the body and returns the rendered HTML.
func (s *chromeSession) Page(ctx context.Context, rawURL string) (string, error) {
	pctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(pctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	return html, nil
}

func (s *chromeSession) Close() { s.cancel() }
