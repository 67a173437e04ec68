package refresh

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/police-terminal/internal/merge"
	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

func realPipeline(t *testing.T, live string, history ...string) (*Pipeline, *store.Snapshots, *render.Overlay) {
	t.Helper()
	var hist sources.History
	if len(history) > 0 {
		h := make(staticHistory, 0, len(history))
		for _, text := range history {
			h = append(h, types.ChatMessage{Text: text})
		}
		hist = h
	}
	overlay, err := render.New()
	require.NoError(t, err)
	snaps := store.NewSnapshots(store.NewMemoryKV(), nil)

	return &Pipeline{
		Collector: sources.NewAggregator(sources.StaticPage{HTML: live}, hist, nil),
		Merger:    merge.New(merge.Options{Rand: rand.New(rand.NewPCG(3, 3))}),
		Store:     snaps,
		Renderer:  overlay,
	}, snaps, overlay
}

type staticHistory []types.ChatMessage

func (h staticHistory) Messages(context.Context) ([]types.ChatMessage, error) {
	return h, nil
}

func TestPipeline_LiveBeatsHistory(t *testing.T) {
	p, snaps, overlay := realPipeline(t,
		`<div id="chat">`+linAtHarbor+`<img class="person-avatar-Lin" src="lin.jpg"></div>`,
		`<div class="person-location-Lin">Dock</div><div class="person-location-Shi">Mahjong Hall</div>`,
	)

	res, err := p.Run(context.Background(), types.PanelMap, sources.ScopeFull, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fragments)
	assert.Equal(t, 2, res.Found)
	assert.False(t, res.Defaults)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Harbor Office", res.Records[0].Value)
	assert.Equal(t, "lin.jpg", res.Records[0].Avatar)
	assert.Equal(t, "Shi", res.Records[1].Name)
	assert.Equal(t, merge.DefaultAvatar, res.Records[1].Avatar)

	saved, ok, err := snaps.Load(context.Background(), types.DomainLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Records, saved)

	info, ok := overlay.Marker("1")
	require.True(t, ok)
	assert.Equal(t, "Lin", info.Name)
}

func TestPipeline_LatestScopeSeesOnlyNewestMessage(t *testing.T) {
	p, _, _ := realPipeline(t, "",
		`<div class="person-location-Old">Pier</div>`,
		`<div class="person-location-New">Tower</div>`,
	)

	res, err := p.Run(context.Background(), types.PanelMap, sources.ScopeLatest, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "New", res.Records[0].Name)
}

func TestPipeline_MonitorUsesStatements(t *testing.T) {
	p, _, _ := realPipeline(t,
		`<main><div class="person-progress-Lin">-20%</div><p class="person-statement-Lin">Nervous.</p></main>`)

	res, err := p.Run(context.Background(), types.PanelMonitor, sources.ScopeLive, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, -20, *res.Records[0].Progress)
	assert.Equal(t, "Nervous.", res.Records[0].Statement)
}

func TestPipeline_RequireDataSkips(t *testing.T) {
	p, snaps, _ := realPipeline(t, `<main>nothing here</main>`)

	res, err := p.Run(context.Background(), types.PanelMap, sources.ScopeFull, RunOptions{RequireData: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Records)

	_, ok, err := snaps.Load(context.Background(), types.DomainLocation)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPipeline_RequireDataSkipsUnparsableProgress(t *testing.T) {
	p, snaps, overlay := realPipeline(t, `<main><div class="person-progress-Lin">high</div></main>`)
	seed := []types.PersonRecord{{Name: "Real", Progress: types.IntPtr(40)}}
	require.NoError(t, snaps.Save(context.Background(), types.DomainProgress, seed))

	res, err := p.Run(context.Background(), types.PanelMonitor, sources.ScopeFull, RunOptions{RequireData: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Found)
	assert.Equal(t, 1, res.Candidates)

	saved, ok, err := snaps.Load(context.Background(), types.DomainProgress)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seed, saved)

	markup, err := overlay.Panel(types.PanelMonitor)
	require.NoError(t, err)
	assert.NotContains(t, markup, "裴矜予")
}

func TestPipeline_UnparsableProgressFallsBackToDefaults(t *testing.T) {
	p, _, _ := realPipeline(t, `<main><div class="person-progress-Lin">high</div></main>`)

	res, err := p.Run(context.Background(), types.PanelMonitor, sources.ScopeLive, RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, res.Defaults)
	assert.True(t, merge.IsDefaultRoster(res.Records))
}

func TestPipeline_RecoversPanic(t *testing.T) {
	p := &Pipeline{
		Collector: &fakeCollector{collect: func(types.Domain, sources.Scope) []types.Fragment { panic("boom") }},
		Merger:    merge.New(merge.Options{}),
	}

	_, err := p.Run(context.Background(), types.PanelNews, sources.ScopeLive, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPipeline_HasRecentData(t *testing.T) {
	p, _, _ := realPipeline(t, "", linAtHarbor)
	assert.True(t, p.HasRecentData(context.Background(), types.PanelMap))
	assert.False(t, p.HasRecentData(context.Background(), types.PanelMonitor))
}
