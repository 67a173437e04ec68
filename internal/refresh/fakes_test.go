package refresh

import (
	"context"
	"sync"

	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

type collectCall struct {
	domain types.Domain
	scope  sources.Scope
}

type fakeCollector struct {
	mu      sync.Mutex
	calls   []collectCall
	collect func(domain types.Domain, scope sources.Scope) []types.Fragment
}

func (f *fakeCollector) Collect(_ context.Context, domain types.Domain, scope sources.Scope) []types.Fragment {
	f.mu.Lock()
	f.calls = append(f.calls, collectCall{domain: domain, scope: scope})
	fn := f.collect
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(domain, scope)
}

// scopes returns the scopes of pipeline collections, excluding recent data checks.
func (f *fakeCollector) scopes() []sources.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sources.Scope
	for _, c := range f.calls {
		if c.scope != sources.ScopeRecent {
			out = append(out, c.scope)
		}
	}
	return out
}

func (f *fakeCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu      sync.Mutex
	saved   map[types.Domain][]types.PersonRecord
	saves   int
	onSave  func()
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[types.Domain][]types.PersonRecord)}
}

func (f *fakeStore) Save(_ context.Context, domain types.Domain, records []types.PersonRecord) error {
	f.mu.Lock()
	f.saves++
	f.saved[domain] = records
	hook := f.onSave
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeStore) Load(_ context.Context, domain types.Domain) ([]types.PersonRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	r, ok := f.saved[domain]
	return r, ok && len(r) > 0, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type renderCall struct {
	panel   types.Panel
	records []types.PersonRecord
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders []renderCall
	markers map[string]render.MarkerInfo
}

func (f *fakeRenderer) Render(panel types.Panel, records []types.PersonRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, renderCall{panel: panel, records: records})
	return nil
}

func (f *fakeRenderer) Marker(id string) (render.MarkerInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markers[id]
	return m, ok
}

func (f *fakeRenderer) calls() []renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]renderCall(nil), f.renders...)
}

// restoringRenderer keeps marker data between renders like the overlay does.
type restoringRenderer struct {
	*fakeRenderer
	hasData  bool
	restores int
}

func (r *restoringRenderer) HasMarkerData() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasData
}

func (r *restoringRenderer) RestoreIndicators() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restores++
}

func (r *restoringRenderer) restoreCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restores
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []types.Notice
}

func (r *recordingNotifier) Notify(n types.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) kinds() []types.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

func (r *recordingNotifier) has(kind types.NoticeKind, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Kind == kind && n.Text == text {
			return true
		}
	}
	return false
}

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
