package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

// Sender transmits a command into the chat host. Delivery is not confirmed.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Errors returned by Goto.
var (
	ErrUnknownMarker = errors.New("unknown marker")
	ErrEmptyMarker   = errors.New("marker has no person")
	ErrClosed        = errors.New("controller closed")
)

// Options configures a Controller.
type Options struct {
	// Debounce collapses bursts of Refresh calls; the last call wins.
	Debounce time.Duration
	// Timeout ends a wait that no chat response resolves.
	Timeout time.Duration
	// RunTimeout bounds one pipeline run, including source collection.
	RunTimeout time.Duration
	// Commands are sent to the chat host when a panel is opened.
	Commands map[types.Panel]string
	// MapKeywords resolve a map wait even without location markup.
	MapKeywords []string
}

// DefaultOptions returns the terminal's standard timings and commands.
func DefaultOptions() Options {
	return Options{
		Debounce:   100 * time.Millisecond,
		Timeout:    60 * time.Second,
		RunTimeout: 30 * time.Second,
		Commands: map[types.Panel]string{
			types.PanelMap:     "@查看地图",
			types.PanelMonitor: "@查看监控",
			types.PanelNews:    "@查看新闻",
		},
		MapKeywords: []string{"位置", "所在地"},
	}
}

type panelState struct {
	state   types.WaitState
	waitGen uint64
	timeout *time.Timer

	debounce    *time.Timer
	debounceGen uint64
	pending     sources.Scope

	run sync.Mutex // serialises pipeline runs for the panel
}

// Controller owns the wait state of every panel.
type Controller struct {
	pipeline *Pipeline
	notifier Notifier
	sender   Sender
	metrics  *Metrics
	logger   *zap.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	panels map[types.Panel]*panelState
	closed bool
}

// Config bundles the controller's collaborators. Notifier, Sender and
// Metrics may be nil.
type Config struct {
	Pipeline *Pipeline
	Notifier Notifier
	Sender   Sender
	Metrics  *Metrics
	Logger   *zap.Logger
	Options  Options
}

// NewController creates a controller with every panel Idle. Zero-valued
// options fall back to the defaults.
func NewController(cfg Config) *Controller {
	def := DefaultOptions()
	opts := cfg.Options
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = def.RunTimeout
	}
	if opts.Commands == nil {
		opts.Commands = def.Commands
	}
	if opts.MapKeywords == nil {
		opts.MapKeywords = def.MapKeywords
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		pipeline: cfg.Pipeline,
		notifier: cfg.Notifier,
		sender:   cfg.Sender,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		panels:   make(map[types.Panel]*panelState),
	}
	for _, p := range types.AllPanels {
		c.panels[p] = &panelState{}
	}
	return c
}

// State returns the panel's wait state.
func (c *Controller) State(panel types.Panel) types.WaitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ps, ok := c.panels[panel]; ok {
		return ps.state
	}
	return types.WaitIdle
}

// States returns the wait state of every panel.
func (c *Controller) States() map[types.Panel]types.WaitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[types.Panel]types.WaitState, len(c.panels))
	for p, ps := range c.panels {
		out[p] = ps.state
	}
	return out
}

// Open starts a wait for the panel: it shows a loading notice, sends the
// panel's command to the chat host and arms the timeout. It returns false
// without doing anything if the panel is already waiting.
func (c *Controller) Open(panel types.Panel) bool {
	c.mu.Lock()
	ps, ok := c.panels[panel]
	if !ok || c.closed || ps.state == types.WaitWaiting {
		c.mu.Unlock()
		return false
	}

	ps.state = types.WaitWaiting
	ps.waitGen++
	gen := ps.waitGen
	if ps.debounce != nil {
		ps.debounce.Stop()
		ps.debounceGen++
	}
	ps.timeout = time.AfterFunc(c.opts.Timeout, func() { c.onTimeout(panel, gen) })
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("waiting for chat response", zap.String("panel", string(panel)))
	c.notify(panel, types.NoticeInfo, textsFor(panel).loading)

	command := c.opts.Commands[panel]
	go func() {
		defer c.wg.Done()
		c.send(command)
	}()
	return true
}

// HandleMessage checks a received chat message against every waiting
// panel. A panel is resolved by any primary-domain marker in the text, or
// for the map by one of the configured keywords. Resolved panels run their
// show sequence asynchronously. It returns the resolved panels.
func (c *Controller) HandleMessage(text string) []types.Panel {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	type resolution struct {
		panel types.Panel
		gen   uint64
	}
	var resolved []resolution
	for _, panel := range types.AllPanels {
		ps := c.panels[panel]
		if ps.state != types.WaitWaiting || !c.triggers(panel, text) {
			continue
		}
		if ps.timeout != nil {
			ps.timeout.Stop()
			ps.timeout = nil
		}
		ps.state = types.WaitResolved
		ps.waitGen++
		resolved = append(resolved, resolution{panel: panel, gen: ps.waitGen})
	}
	c.wg.Add(len(resolved))
	c.mu.Unlock()

	panels := make([]types.Panel, 0, len(resolved))
	for _, r := range resolved {
		panels = append(panels, r.panel)
		c.metrics.Waits.WithLabelValues(string(r.panel), types.WaitResolved.String()).Inc()
		c.logger.Info("chat response received", zap.String("panel", string(r.panel)))
		go func() {
			defer c.wg.Done()
			c.finishWait(r.panel, r.gen, types.WaitResolved)
		}()
	}
	return panels
}

func (c *Controller) triggers(panel types.Panel, text string) bool {
	if panel == types.PanelMap {
		for _, kw := range c.opts.MapKeywords {
			if kw != "" && strings.Contains(text, kw) {
				return true
			}
		}
	}
	return scanner.Contains(text, panel.PrimaryDomain())
}

func (c *Controller) onTimeout(panel types.Panel, gen uint64) {
	c.mu.Lock()
	ps := c.panels[panel]
	if c.closed || ps.waitGen != gen || ps.state != types.WaitWaiting {
		c.mu.Unlock()
		return
	}
	ps.state = types.WaitTimedOut
	ps.timeout = nil
	ps.waitGen++
	gen = ps.waitGen
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.metrics.Waits.WithLabelValues(string(panel), types.WaitTimedOut.String()).Inc()
	c.logger.Warn("chat response timed out", zap.String("panel", string(panel)))
	c.finishWait(panel, gen, types.WaitTimedOut)
}

// finishWait runs the show sequence, announces the outcome and returns the
// panel to Idle unless a newer wait has started meanwhile.
func (c *Controller) finishWait(panel types.Panel, gen uint64, outcome types.WaitState) {
	c.show(panel)

	t := textsFor(panel)
	if outcome == types.WaitTimedOut {
		c.notify(panel, types.NoticeTimeout, t.timeout)
	} else {
		c.notify(panel, types.NoticeSuccess, t.resolved)
	}

	c.mu.Lock()
	if ps := c.panels[panel]; ps.waitGen == gen {
		ps.state = types.WaitIdle
	}
	c.mu.Unlock()
}

// show checks recent sources for data. With data it runs a full scan;
// without, it re-shows the current markers or the stored snapshot; with
// neither it renders the defaults.
func (c *Controller) show(panel types.Panel) {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RunTimeout)
	defer cancel()

	found, err := c.hasRecentData(ctx, panel)
	if err != nil {
		c.fail(panel, err)
		return
	}
	if found {
		c.run(ctx, panel, sources.ScopeFull, RunOptions{}, false)
		return
	}

	if c.showCached(ctx, panel) {
		return
	}
	c.run(ctx, panel, sources.ScopeLive, RunOptions{}, false)
}

func (c *Controller) hasRecentData(ctx context.Context, panel types.Panel) (found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recent data check panicked: %v", r)
		}
	}()
	return c.pipeline.HasRecentData(ctx, panel), nil
}

// markerRestorer is implemented by renderers that keep map markers between
// renders.
type markerRestorer interface {
	HasMarkerData() bool
	RestoreIndicators()
}

// showCached re-displays the map markers still on the page, or else renders
// the stored snapshot. It reports whether anything was shown.
func (c *Controller) showCached(ctx context.Context, panel types.Panel) (shown bool) {
	if c.pipeline.Store == nil || c.pipeline.Renderer == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.fail(panel, fmt.Errorf("cached render panicked: %v", r))
			shown = true
		}
	}()

	ps := c.panels[panel]
	ps.run.Lock()
	defer ps.run.Unlock()

	if r, ok := c.pipeline.Renderer.(markerRestorer); ok && panel == types.PanelMap && r.HasMarkerData() {
		r.RestoreIndicators()
		c.metrics.Runs.WithLabelValues(string(panel), outcomeCached).Inc()
		c.notify(panel, types.NoticeInfo, textsFor(panel).cached)
		return true
	}

	records, ok, err := c.pipeline.Store.Load(ctx, panel.PrimaryDomain())
	if err != nil {
		c.logger.Warn("failed to load snapshot", zap.String("panel", string(panel)), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := c.pipeline.Renderer.Render(panel, records); err != nil {
		c.fail(panel, err)
		return true
	}
	c.metrics.Runs.WithLabelValues(string(panel), outcomeCached).Inc()
	c.notify(panel, types.NoticeInfo, textsFor(panel).cached)
	return true
}

// Refresh schedules a pipeline run for the panel after the debounce delay.
// A later call within the delay replaces the earlier one, and its scope is
// used. It returns false without doing anything while the panel is waiting.
func (c *Controller) Refresh(panel types.Panel, scope sources.Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps, ok := c.panels[panel]
	if !ok || c.closed || ps.state == types.WaitWaiting {
		return false
	}

	ps.pending = scope
	ps.debounceGen++
	gen := ps.debounceGen
	if ps.debounce != nil {
		ps.debounce.Stop()
	}
	ps.debounce = time.AfterFunc(c.opts.Debounce, func() { c.onDebounce(panel, gen) })
	return true
}

func (c *Controller) onDebounce(panel types.Panel, gen uint64) {
	c.mu.Lock()
	ps := c.panels[panel]
	if c.closed || ps.debounceGen != gen || ps.state == types.WaitWaiting {
		c.mu.Unlock()
		return
	}
	scope := ps.pending
	ps.debounce = nil
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RunTimeout)
	defer cancel()

	force := scope == sources.ScopeFull
	c.run(ctx, panel, scope, RunOptions{RequireData: force}, force)
}

// run executes one serialised pipeline pass and reports it.
func (c *Controller) run(ctx context.Context, panel types.Panel, scope sources.Scope, opts RunOptions, force bool) {
	ps := c.panels[panel]
	ps.run.Lock()
	defer ps.run.Unlock()

	start := time.Now()
	res, err := c.pipeline.Run(ctx, panel, scope, opts)
	c.metrics.Duration.WithLabelValues(string(panel)).Observe(time.Since(start).Seconds())

	t := textsFor(panel)
	switch {
	case err != nil:
		c.fail(panel, err)
	case res.Skipped:
		c.metrics.Runs.WithLabelValues(string(panel), outcomeEmpty).Inc()
		c.notify(panel, types.NoticeError, t.empty)
	default:
		c.metrics.Runs.WithLabelValues(string(panel), outcomeOK).Inc()
		c.metrics.Records.WithLabelValues(string(panel.PrimaryDomain())).Set(float64(len(res.Records)))
		if force {
			c.notifyf(panel, types.NoticeSuccess, t.forced, res.Found)
		} else {
			c.notifyf(panel, types.NoticeInfo, t.updated, len(res.Records))
		}
	}
}

func (c *Controller) fail(panel types.Panel, err error) {
	c.metrics.Runs.WithLabelValues(string(panel), outcomeError).Inc()
	c.logger.Error("refresh failed", zap.String("panel", string(panel)), zap.Error(err))
	c.notify(panel, types.NoticeError, textsFor(panel).failed)
}

// Goto sends a "go to" command for the person on a map marker and returns
// the text sent.
func (c *Controller) Goto(ctx context.Context, markerID string) (string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	if c.pipeline.Renderer == nil {
		return "", ErrUnknownMarker
	}
	info, ok := c.pipeline.Renderer.Marker(markerID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMarker, markerID)
	}
	if info.Empty {
		return "", fmt.Errorf("%w: %q", ErrEmptyMarker, markerID)
	}

	text := fmt.Sprintf("前往%s找%s", info.Location, info.Name)
	if c.sender == nil {
		return text, nil
	}
	if err := c.sender.Send(ctx, text); err != nil {
		return text, fmt.Errorf("failed to send goto command: %w", err)
	}
	return text, nil
}

func (c *Controller) send(command string) {
	if c.sender == nil || command == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("sender panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RunTimeout)
	defer cancel()
	if err := c.sender.Send(ctx, command); err != nil {
		c.logger.Warn("failed to send command", zap.String("command", command), zap.Error(err))
	}
}

// Close stops all timers, cancels in-flight work and waits for it to end.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, ps := range c.panels {
		if ps.timeout != nil {
			ps.timeout.Stop()
		}
		if ps.debounce != nil {
			ps.debounce.Stop()
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
