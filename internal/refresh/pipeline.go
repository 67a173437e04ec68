// Package refresh drives the scan, merge, persist and render pipeline for
// each terminal panel behind a debounced, single-flight wait state machine.
package refresh

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/merge"
	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

// Collector returns the fragments to scan for a domain, in priority order.
type Collector interface {
	Collect(ctx context.Context, domain types.Domain, scope sources.Scope) []types.Fragment
}

// Merger reduces candidates to canonical records. Recoverable counts the
// records Merge would build without falling back to defaults.
type Merger interface {
	Merge(primary types.Domain, candidates []types.RawCandidate) []types.PersonRecord
	Recoverable(primary types.Domain, candidates []types.RawCandidate) int
}

// Store persists the last record set per domain.
type Store interface {
	Save(ctx context.Context, domain types.Domain, records []types.PersonRecord) error
	Load(ctx context.Context, domain types.Domain) ([]types.PersonRecord, bool, error)
}

// Renderer updates the UI for a panel. Render must be idempotent.
type Renderer interface {
	Render(panel types.Panel, records []types.PersonRecord) error
	Marker(id string) (render.MarkerInfo, bool)
}

// Result describes one pipeline run.
type Result struct {
	RunID      uuid.UUID            `json:"run_id"`
	Panel      types.Panel          `json:"panel"`
	Scope      string               `json:"scope"`
	Fragments  int                  `json:"fragments"`
	Candidates int                  `json:"candidates"`
	Found      int                  `json:"found"` // records recovered from candidates
	Records    []types.PersonRecord `json:"records"`
	Defaults   bool                 `json:"defaults"` // Records is the default roster
	Skipped    bool                 `json:"skipped"` // nothing found and RequireData was set
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// RequireData leaves the snapshot and UI untouched when no
	// primary-domain record can be recovered, instead of rendering defaults.
	RequireData bool
}

// Pipeline runs Collect, Scan, Merge, Save and Render once.
// Store and Renderer are optional.
type Pipeline struct {
	Collector Collector
	Merger    Merger
	Store     Store
	Renderer  Renderer
	Logger    *zap.Logger
}

// Run executes the pipeline for a panel. Panics in any stage are recovered
// and returned as errors. A failed save is logged and does not stop the
// render.
func (p *Pipeline) Run(ctx context.Context, panel types.Panel, scope sources.Scope, opts RunOptions) (res Result, err error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	res = Result{RunID: uuid.New(), Panel: panel, Scope: scope.String()}
	logger = logger.With(zap.String("run_id", res.RunID.String()), zap.String("panel", string(panel)))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("refresh pipeline panicked",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("refresh pipeline panicked: %v", r)
		}
	}()

	primary := panel.PrimaryDomain()
	fragments := p.Collector.Collect(ctx, primary, scope)
	res.Fragments = len(fragments)

	candidates, scanErr := scanner.ScanAll(fragments, panel.Domains()...)
	if scanErr != nil {
		logger.Warn("some fragments could not be scanned", zap.Error(scanErr))
	}
	res.Candidates = len(candidates)
	res.Found = p.Merger.Recoverable(primary, candidates)

	if opts.RequireData && res.Found == 0 {
		res.Skipped = true
		logger.Info("no data found, keeping current snapshot", zap.Stringer("scope", scope))
		return res, nil
	}

	res.Records = p.Merger.Merge(primary, candidates)
	res.Defaults = res.Found == 0 && merge.IsDefaultRoster(res.Records)

	if p.Store != nil {
		if err := p.Store.Save(ctx, primary, res.Records); err != nil {
			logger.Warn("failed to save snapshot", zap.Error(err))
		}
	}
	if p.Renderer != nil {
		if err := p.Renderer.Render(panel, res.Records); err != nil {
			return res, fmt.Errorf("failed to render %s: %w", panel, err)
		}
	}

	logger.Info("refresh complete",
		zap.Stringer("scope", scope),
		zap.Int("fragments", res.Fragments),
		zap.Int("candidates", res.Candidates),
		zap.Int("records", len(res.Records)),
		zap.Bool("defaults", res.Defaults))
	return res, nil
}

// HasRecentData reports whether the recent sources hold any primary-domain data
// for the panel.
func (p *Pipeline) HasRecentData(ctx context.Context, panel types.Panel) bool {
	primary := panel.PrimaryDomain()
	for _, f := range p.Collector.Collect(ctx, primary, sources.ScopeRecent) {
		if scanner.Contains(f.HTML, primary) {
			return true
		}
	}
	return false
}
