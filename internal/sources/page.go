package sources

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/fetch"
)

// hostRegion narrows a full page to the host's message area and drops the
// terminal's own overlay markup.
func hostRegion(html string) (string, error) {
	return fetch.ExtractRegion(html, fetch.HostRegionSelectors(), fetch.OverlaySelectors()...)
}

// StaticPage serves a fixed HTML string. Useful for tests and for piping a
// saved page into the scanner.
type StaticPage struct {
	HTML string
}

// PageHTML returns the fixed HTML.
func (p StaticPage) PageHTML(_ context.Context) (string, error) {
	if p.HTML == "" {
		return "", ErrUnavailable
	}
	return hostRegion(p.HTML)
}

// FilePage re-reads a saved page from disk on every call.
type FilePage struct {
	Path string
}

// PageHTML reads and narrows the file.
func (p FilePage) PageHTML(_ context.Context) (string, error) {
	if p.Path == "" {
		return "", ErrUnavailable
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", &SourceError{Source: "page file", Message: fmt.Sprintf("failed to read %s", p.Path), Cause: err}
	}
	return hostRegion(string(data))
}

// HTTPPage fetches the host page over plain HTTP. Pages rendered client-side
// need RenderedPage instead.
type HTTPPage struct {
	URL     string
	Options *fetch.Options
}

// PageHTML fetches and narrows the page.
func (p HTTPPage) PageHTML(ctx context.Context) (string, error) {
	result, err := fetch.URL(ctx, p.URL, p.Options)
	if err != nil {
		return "", &SourceError{Source: "http page", Message: "fetch failed", Cause: err}
	}
	return hostRegion(result.HTML)
}

// RenderedPage renders the host page in a fresh headless browser per call.
type RenderedPage struct {
	URL     string
	Options fetch.BrowserOptions
	Logger  *zap.Logger
}

// PageHTML renders and narrows the page.
func (p RenderedPage) PageHTML(ctx context.Context) (string, error) {
	html, err := fetch.WithBrowser(ctx, p.URL, p.Options, p.Logger)
	if err != nil {
		return "", &SourceError{Source: "rendered page", Message: "render failed", Cause: err}
	}
	return hostRegion(html)
}
