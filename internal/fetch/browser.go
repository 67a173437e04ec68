// Package fetch - browser.go renders the host page in a headless browser.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserOptions configures a one-shot headless render.
type BrowserOptions struct {
	Timeout time.Duration
	// WaitSelector is waited for before the HTML is captured.
	WaitSelector string
	// Settle is extra time for client-side rendering after WaitSelector appears.
	Settle time.Duration
}

// DefaultBrowserOptions waits for the body and gives scripts two seconds.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Timeout:      30 * time.Second,
		WaitSelector: "body",
		Settle:       2 * time.Second,
	}
}

// WithBrowser renders a page in a headless browser and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func WithBrowser(ctx context.Context, url string, opts BrowserOptions, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = "body"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBrowserOptions().Timeout
	}

	logger.Debug("starting headless browser", zap.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(opts.WaitSelector),
		chromedp.Sleep(opts.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	if html == "" {
		return "", &Error{URL: url, Message: fmt.Sprintf("empty document after %s", opts.Timeout)}
	}

	return html, nil
}
