// Package merge reduces raw scanner candidates to canonical person records.
package merge

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonathan/police-terminal/internal/types"
)

// Placeholders used when a source yields nothing for a field.
const (
	DefaultAvatar    = "https://pub-07f3e1b810bb45079240dae84aaadd3e.r2.dev/profile/defult.jpg"
	DefaultStatement = "无可用数据..."
	DefaultLocation  = "未知位置"
	UnknownPerson    = "未知人物"
)

// MaxMarkers is the number of map pins, and so the cap on location records.
const MaxMarkers = 5

// Options configures a Merger.
type Options struct {
	MaxMarkers       int
	DefaultAvatar    string
	DefaultStatement string
	DefaultLocation  string

	// Rand drives marker placement. Nil seeds from the clock.
	Rand *rand.Rand
}

// DefaultOptions returns the options used by the terminal.
func DefaultOptions() Options {
	return Options{
		MaxMarkers:       MaxMarkers,
		DefaultAvatar:    DefaultAvatar,
		DefaultStatement: DefaultStatement,
		DefaultLocation:  DefaultLocation,
	}
}

// Merger is safe for concurrent use.
type Merger struct {
	opts Options

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a Merger. Zero-valued options fall back to the defaults.
func New(opts Options) *Merger {
	def := DefaultOptions()
	if opts.MaxMarkers <= 0 {
		opts.MaxMarkers = def.MaxMarkers
	}
	if opts.DefaultAvatar == "" {
		opts.DefaultAvatar = def.DefaultAvatar
	}
	if opts.DefaultStatement == "" {
		opts.DefaultStatement = def.DefaultStatement
	}
	if opts.DefaultLocation == "" {
		opts.DefaultLocation = def.DefaultLocation
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Merger{opts: opts, rng: rng}
}

// Merge builds the records for the primary domain from candidates in scan
// order. The first candidate per name defines the record; later ones are
// dropped. Avatar and statement candidates enrich records by name. When no
// record can be built the default roster is returned instead.
func (m *Merger) Merge(primary types.Domain, candidates []types.RawCandidate) []types.PersonRecord {
	records := m.primaryRecords(primary, candidates)

	if len(records) == 0 {
		records = Defaults(primary)
	} else {
		avatars, statements := supportIndex(candidates)
		for i := range records {
			records[i].Avatar = m.resolveAvatar(avatars[records[i].Name])
			records[i].Statement = m.opts.DefaultStatement
			if s, ok := statements[records[i].Name]; ok {
				records[i].Statement = s
			}
		}
	}

	if primary == types.DomainLocation {
		if len(records) > m.opts.MaxMarkers {
			records = records[:m.opts.MaxMarkers]
		}
		positions := m.place(len(records))
		for i := range records {
			p := positions[i]
			records[i].Position = &p
		}
	}

	return records
}

// Recoverable returns how many primary-domain records Merge would build from
// candidates before falling back to the default roster.
func (m *Merger) Recoverable(primary types.Domain, candidates []types.RawCandidate) int {
	return len(m.primaryRecords(primary, candidates))
}

func (m *Merger) primaryRecords(primary types.Domain, candidates []types.RawCandidate) []types.PersonRecord {
	seen := make(map[string]bool)
	var records []types.PersonRecord

	for _, c := range candidates {
		if c.Domain != primary || c.Name == "" || seen[c.Name] {
			continue
		}

		record := types.PersonRecord{Name: c.Name}
		switch primary {
		case types.DomainProgress:
			v, ok := ParseProgress(c.Value)
			if !ok {
				continue
			}
			record.Progress = types.IntPtr(v)
		case types.DomainLocation:
			record.Value = c.Value
			if record.Value == "" {
				record.Value = m.opts.DefaultLocation
			}
		default:
			record.Value = c.Value
		}

		seen[c.Name] = true
		records = append(records, record)
	}
	return records
}

// supportIndex returns the first avatar candidate and the first non-empty
// statement per name.
func supportIndex(candidates []types.RawCandidate) (map[string]types.RawCandidate, map[string]string) {
	avatars := make(map[string]types.RawCandidate)
	statements := make(map[string]string)
	for _, c := range candidates {
		switch c.Domain {
		case types.DomainAvatar:
			if _, ok := avatars[c.Name]; !ok {
				avatars[c.Name] = c
			}
		case types.DomainStatement:
			if _, ok := statements[c.Name]; !ok && c.Value != "" {
				statements[c.Name] = c.Value
			}
		}
	}
	return avatars, statements
}

// resolveAvatar walks src, data-avatar, text content, then the default,
// advancing only past empty values.
func (m *Merger) resolveAvatar(c types.RawCandidate) string {
	for _, v := range []string{c.Src, c.DataAvatar, c.Text} {
		if v != "" {
			return v
		}
	}
	return m.opts.DefaultAvatar
}
