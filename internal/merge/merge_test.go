package merge

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/types"
)

var ignorePosition = cmpopts.IgnoreFields(types.PersonRecord{}, "Position")

func seeded() *Merger {
	return New(Options{Rand: rand.New(rand.NewPCG(1, 2))})
}

func loc(name, value string) types.RawCandidate {
	return types.RawCandidate{Domain: types.DomainLocation, Name: name, Value: value, Text: value}
}

func TestMerge_SingleLocationUsesDefaults(t *testing.T) {
	candidates, err := scanner.Scan(`<div class="person-location-Lin">Harbor Office</div>`, types.DomainLocation)
	require.NoError(t, err)

	got := seeded().Merge(types.DomainLocation, candidates)

	want := []types.PersonRecord{{
		Name:      "Lin",
		Value:     "Harbor Office",
		Avatar:    DefaultAvatar,
		Statement: DefaultStatement,
	}}
	if diff := cmp.Diff(want, got, ignorePosition); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, got[0].Position)
}

func TestMerge_FirstWins(t *testing.T) {
	candidates := []types.RawCandidate{
		loc("Lin", "Harbor"),
		loc("Shi", "Mahjong Hall"),
		loc("Lin", "Dock"),
	}

	got := seeded().Merge(types.DomainLocation, candidates)

	require.Len(t, got, 2)
	assert.Equal(t, "Lin", got[0].Name)
	assert.Equal(t, "Harbor", got[0].Value)
	assert.Equal(t, "Shi", got[1].Name)
}

func TestMerge_LiveBeatsHistory(t *testing.T) {
	fragments := []types.Fragment{
		{Origin: types.OriginLive, Index: 0, HTML: `<div class="person-location-Lin">Harbor</div>`},
		{Origin: types.OriginHistory, Index: 1, HTML: `<div class="person-location-Lin">Dock</div>`},
	}
	candidates, err := scanner.ScanAll(fragments, types.DomainLocation, types.DomainAvatar)
	require.NoError(t, err)

	got := seeded().Merge(types.DomainLocation, candidates)

	require.Len(t, got, 1)
	assert.Equal(t, "Harbor", got[0].Value)
}

func TestMerge_CapsLocationAtFive(t *testing.T) {
	var candidates []types.RawCandidate
	for i := 0; i < 50; i++ {
		candidates = append(candidates, loc(fmt.Sprintf("P%02d", i), "somewhere"))
	}

	got := seeded().Merge(types.DomainLocation, candidates)

	require.Len(t, got, MaxMarkers)
	for i, r := range got {
		assert.Equal(t, fmt.Sprintf("P%02d", i), r.Name)
	}
}

func TestMerge_ProgressIsNotCapped(t *testing.T) {
	var candidates []types.RawCandidate
	for i := 0; i < 12; i++ {
		candidates = append(candidates, types.RawCandidate{
			Domain: types.DomainProgress, Name: fmt.Sprintf("P%d", i), Value: "+10",
		})
	}

	got := seeded().Merge(types.DomainProgress, candidates)

	assert.Len(t, got, 12)
	for _, r := range got {
		assert.Nil(t, r.Position)
	}
}

func TestMerge_NoCandidatesReturnsRoster(t *testing.T) {
	for _, domain := range []types.Domain{types.DomainLocation, types.DomainProgress} {
		t.Run(string(domain), func(t *testing.T) {
			got := seeded().Merge(domain, nil)

			if diff := cmp.Diff(Defaults(domain), got, ignorePosition); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
			assert.Len(t, got, 5)
			assert.True(t, IsDefaultRoster(got))
		})
	}
}

func TestMerge_DefaultsNeverMixed(t *testing.T) {
	got := seeded().Merge(types.DomainLocation, []types.RawCandidate{loc("Lin", "Harbor")})

	assert.Len(t, got, 1)
	assert.False(t, IsDefaultRoster(got))
}

func TestMerge_SupportCandidatesOnlyYieldRoster(t *testing.T) {
	candidates := []types.RawCandidate{
		{Domain: types.DomainAvatar, Name: "Lin", Src: "lin.png", Value: "lin.png"},
	}

	got := seeded().Merge(types.DomainLocation, candidates)

	assert.True(t, IsDefaultRoster(got))
}

func TestMerge_AvatarChain(t *testing.T) {
	tests := []struct {
		name   string
		avatar *types.RawCandidate
		want   string
	}{
		{
			name:   "src wins",
			avatar: &types.RawCandidate{Src: "src.png", DataAvatar: "data.png", Text: "text.png"},
			want:   "src.png",
		},
		{
			name:   "data-avatar when no src",
			avatar: &types.RawCandidate{DataAvatar: "data.png", Text: "text.png"},
			want:   "data.png",
		},
		{
			name:   "text last",
			avatar: &types.RawCandidate{Text: "text.png"},
			want:   "text.png",
		},
		{
			name:   "empty element",
			avatar: &types.RawCandidate{},
			want:   DefaultAvatar,
		},
		{
			name: "no avatar element",
			want: DefaultAvatar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []types.RawCandidate{loc("Lin", "Harbor")}
			if tt.avatar != nil {
				a := *tt.avatar
				a.Domain = types.DomainAvatar
				a.Name = "Lin"
				candidates = append(candidates, a)
			}

			got := seeded().Merge(types.DomainLocation, candidates)

			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Avatar)
		})
	}
}

func TestMerge_AvatarFromScannedDataAttribute(t *testing.T) {
	html := `<div class="person-location-Lin">Harbor</div>` +
		`<span class="person-avatar-Lin" data-avatar="https://img/lin.jpg">fallback.jpg</span>`
	candidates, err := scanner.ScanAll([]types.Fragment{{HTML: html}}, types.DomainLocation, types.DomainAvatar)
	require.NoError(t, err)

	got := seeded().Merge(types.DomainLocation, candidates)

	require.Len(t, got, 1)
	assert.Equal(t, "https://img/lin.jpg", got[0].Avatar)
}

func TestMerge_FirstAvatarCandidateDecides(t *testing.T) {
	candidates := []types.RawCandidate{
		loc("Lin", "Harbor"),
		{Domain: types.DomainAvatar, Name: "Lin"},
		{Domain: types.DomainAvatar, Name: "Lin", Src: "later.png"},
	}

	got := seeded().Merge(types.DomainLocation, candidates)

	assert.Equal(t, DefaultAvatar, got[0].Avatar)
}

func TestMerge_Statement(t *testing.T) {
	candidates := []types.RawCandidate{
		{Domain: types.DomainProgress, Name: "Lin", Value: "+35"},
		{Domain: types.DomainProgress, Name: "Shi", Value: "-20%"},
		{Domain: types.DomainStatement, Name: "Lin", Value: ""},
		{Domain: types.DomainStatement, Name: "Lin", Value: "Watching the pier."},
		{Domain: types.DomainStatement, Name: "Lin", Value: "ignored"},
	}

	got := seeded().Merge(types.DomainProgress, candidates)

	want := []types.PersonRecord{
		{Name: "Lin", Progress: types.IntPtr(35), Avatar: DefaultAvatar, Statement: "Watching the pier."},
		{Name: "Shi", Progress: types.IntPtr(-20), Avatar: DefaultAvatar, Statement: DefaultStatement},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_UnparsableProgressSkipped(t *testing.T) {
	candidates := []types.RawCandidate{
		{Domain: types.DomainProgress, Name: "Lin", Value: "unknown"},
		{Domain: types.DomainProgress, Name: "Lin", Value: "250"},
	}

	got := seeded().Merge(types.DomainProgress, candidates)

	require.Len(t, got, 1)
	assert.Equal(t, 100, *got[0].Progress)
}

func TestMerge_EmptyLocationValue(t *testing.T) {
	got := seeded().Merge(types.DomainLocation, []types.RawCandidate{loc("Lin", "")})

	assert.Equal(t, DefaultLocation, got[0].Value)
}

func TestMerge_Deterministic(t *testing.T) {
	candidates := []types.RawCandidate{loc("Lin", "Harbor"), loc("Shi", "Dock"), loc("Wu", "Dorm")}

	a := New(Options{Rand: rand.New(rand.NewPCG(7, 7))}).Merge(types.DomainLocation, candidates)
	b := New(Options{Rand: rand.New(rand.NewPCG(7, 7))}).Merge(types.DomainLocation, candidates)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different records:\n%s", diff)
	}
}

func TestNew_FillsZeroOptions(t *testing.T) {
	m := New(Options{})
	assert.Equal(t, DefaultOptions().MaxMarkers, m.opts.MaxMarkers)
	assert.Equal(t, DefaultAvatar, m.opts.DefaultAvatar)
	assert.NotNil(t, m.rng)
}
