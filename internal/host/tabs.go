package host

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/jonathan/police-terminal/internal/fetch"
)

// Tab is one entry of the DevTools /json/list endpoint.
type Tab struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// listEndpoint maps a DevTools URL (http://host:port or a ws:// browser
// endpoint) to its /json/list address.
func listEndpoint(devtoolsURL string) (string, error) {
	u, err := url.Parse(devtoolsURL)
	if err != nil || u.Host == "" {
		return "", &Error{Op: "attach", Message: "invalid devtools url " + devtoolsURL, Cause: err}
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/json/list"
	u.RawQuery = ""
	return u.String(), nil
}

func listTabs(ctx context.Context, devtoolsURL string) ([]Tab, error) {
	endpoint, err := listEndpoint(devtoolsURL)
	if err != nil {
		return nil, err
	}
	result, err := fetch.URL(ctx, endpoint, nil)
	if err != nil {
		return nil, &Error{Op: "attach", Message: "failed to list tabs", Cause: err}
	}
	var tabs []Tab
	if err := json.Unmarshal([]byte(result.HTML), &tabs); err != nil {
		return nil, &Error{Op: "attach", Message: "unexpected tab list", Cause: err}
	}
	return tabs, nil
}

// pickTab returns the first page whose URL starts with prefix. An empty
// prefix takes the first page.
func pickTab(tabs []Tab, prefix string) (Tab, bool) {
	for _, t := range tabs {
		if t.Type == "page" && strings.HasPrefix(t.URL, prefix) {
			return t, true
		}
	}
	return Tab{}, false
}
