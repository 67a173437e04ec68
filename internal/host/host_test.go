package host

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestListEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:9222", "http://127.0.0.1:9222/json/list"},
		{"ws://127.0.0.1:9222/devtools/browser/abc", "http://127.0.0.1:9222/json/list"},
		{"wss://chrome.local/devtools/browser/abc?x=1", "https://chrome.local/json/list"},
	}
	for _, tt := range tests {
		got, err := listEndpoint(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := listEndpoint("not a url")
	require.Error(t, err)
}

func TestPickTab(t *testing.T) {
	tabs := []Tab{
		{ID: "w", Type: "service_worker", URL: "http://localhost:8000/sw.js"},
		{ID: "a", Type: "page", URL: "https://example.com/"},
		{ID: "b", Type: "page", URL: "http://localhost:8000/#chat"},
	}

	tab, ok := pickTab(tabs, "http://localhost:8000")
	require.True(t, ok)
	assert.Equal(t, "b", tab.ID)

	tab, ok = pickTab(tabs, "")
	require.True(t, ok)
	assert.Equal(t, "a", tab.ID)

	_, ok = pickTab(tabs, "http://elsewhere")
	assert.False(t, ok)
}

func TestListTabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/list", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Tab{{ID: "t1", Type: "page", Title: "SillyTavern", URL: "http://localhost:8000/"}})
	}))
	defer srv.Close()

	tabs, err := listTabs(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, "SillyTavern", tabs[0].Title)
}

func TestListTabs_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not devtools</html>"))
	}))
	defer srv.Close()

	_, err := listTabs(context.Background(), srv.URL)
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "attach", berr.Op)
}

func TestAttach_NoEndpoint(t *testing.T) {
	_, err := Attach(context.Background(), Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devtools url or page url")
}

func TestDecodeMessages(t *testing.T) {
	msgs, err := decodeMessages(json.RawMessage(`[{"name":"Narrator","is_user":false,"mes":"<div class=\"location-Lin\">Pier</div>","send_date":"1700000000"}]`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.ChatMessage{Name: "Narrator", Text: `<div class="location-Lin">Pier</div>`, SendDate: "1700000000"}, msgs[0])

	msgs, err = decodeMessages(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = decodeMessages(json.RawMessage(`null`))
	require.ErrorIs(t, err, sources.ErrUnavailable)

	_, err = decodeMessages(json.RawMessage(`{"chat":1}`))
	require.Error(t, err)
}

func TestFillScript_QuotesText(t *testing.T) {
	script, err := fillScript(`前往"码头"找林修远</script>`)
	require.NoError(t, err)

	assert.Contains(t, script, `#send_textarea`)
	assert.Contains(t, script, `"前往\"码头\"找林修远\u003c/script\u003e"`)
	assert.True(t, strings.HasSuffix(script, `")`))
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Op: "send", Message: "failed", Cause: cause}
	assert.Equal(t, "browser send: failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "browser send: failed", (&Error{Op: "send", Message: "failed"}).Error())
}

type fakeHistory struct {
	mu   sync.Mutex
	msgs []types.ChatMessage
	err  error
}

func (f *fakeHistory) Messages(_ context.Context) ([]types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.ChatMessage(nil), f.msgs...), nil
}

func (f *fakeHistory) set(msgs ...types.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = msgs
}

func TestPoller_ReportsOnlyNewMessages(t *testing.T) {
	history := &fakeHistory{msgs: []types.ChatMessage{{Text: "old"}}}

	var (
		mu  sync.Mutex
		got []string
	)
	p := NewPoller(history, 10*time.Millisecond, func(m types.ChatMessage) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Text)
	}, nil)
	p.Start(context.Background())
	defer p.Stop()

	time.Sleep(30 * time.Millisecond)
	history.set(types.ChatMessage{Text: "old"}, types.ChatMessage{Text: "new 1"}, types.ChatMessage{Text: "new 2"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"new 1", "new 2"}, got)
	mu.Unlock()
}

func TestPoller_ShrinkResetsCount(t *testing.T) {
	history := &fakeHistory{}
	p := NewPoller(history, time.Hour, func(types.ChatMessage) {}, nil)

	var reported []string
	p.handler = func(m types.ChatMessage) { reported = append(reported, m.Text) }

	history.set(types.ChatMessage{Text: "a"}, types.ChatMessage{Text: "b"})
	p.poll(context.Background()) // primes
	history.set(types.ChatMessage{Text: "other chat"})
	p.poll(context.Background())
	history.set(types.ChatMessage{Text: "other chat"}, types.ChatMessage{Text: "reply"})
	p.poll(context.Background())

	assert.Equal(t, []string{"reply"}, reported)
}

func TestPoller_ErrorsAreSkipped(t *testing.T) {
	history := &fakeHistory{err: sources.ErrUnavailable}
	calls := 0
	p := NewPoller(history, time.Hour, func(types.ChatMessage) { calls++ }, nil)

	p.poll(context.Background())
	assert.False(t, p.primed, "a failed poll must not prime the baseline")

	history.err = nil
	history.set(types.ChatMessage{Text: "a"})
	p.poll(context.Background())
	assert.True(t, p.primed)
	assert.Zero(t, calls)
}

func TestPoller_StopWithoutStart(t *testing.T) {
	p := NewPoller(&fakeHistory{}, 0, func(types.ChatMessage) {}, nil)
	assert.Equal(t, time.Second, p.interval)
	p.Stop()
}

func TestPoller_Restart(t *testing.T) {
	history := &fakeHistory{msgs: []types.ChatMessage{{Text: "old"}}}

	var (
		mu  sync.Mutex
		got []string
	)
	p := NewPoller(history, 10*time.Millisecond, func(m types.ChatMessage) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Text)
	}, nil)

	p.Start(context.Background())
	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.primed
	}, time.Second, 5*time.Millisecond)
	p.Stop()

	require.NotPanics(t, func() { p.Start(context.Background()) })
	history.set(types.ChatMessage{Text: "old"}, types.ChatMessage{Text: "after restart"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	require.NotPanics(t, p.Stop)
	p.Stop()

	mu.Lock()
	assert.Equal(t, []string{"after restart"}, got)
	mu.Unlock()
}

func TestNoopSender(t *testing.T) {
	assert.NoError(t, NoopSender{}.Send(context.Background(), "@查看地图"))
}
