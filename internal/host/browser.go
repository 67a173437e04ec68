// Package host talks to the chat host running in a browser: it reads the
// rendered page and chat history over the DevTools protocol and types
// commands into the host's input box.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/fetch"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

// sendSettle is the pause between filling the input box and clicking send,
// giving the host's input handlers time to react.
const sendSettle = 100 * time.Millisecond

// chatScript reads the host's chat array. It yields null when the host
// context is not available.
const chatScript = `(() => {
	try {
		const ctx = SillyTavern.getContext();
		if (!ctx || !Array.isArray(ctx.chat)) return null;
		return ctx.chat.map(m => ({
			name: String(m.name || ""),
			is_user: !!m.is_user,
			mes: typeof m.mes === "string" ? m.mes : "",
			send_date: m.send_date == null ? "" : String(m.send_date),
		}));
	} catch (e) {
		return null;
	}
})()`

// Error represents a failed browser operation.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("browser %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("browser %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a browser session.
type Options struct {
	// DevToolsURL attaches to a running Chrome (ws:// or http:// endpoint).
	// When empty a headless Chrome is launched instead.
	DevToolsURL string
	// PageURL picks the tab to attach to by URL prefix, or is navigated to
	// in a launched browser.
	PageURL string
	// Timeout bounds each operation.
	Timeout time.Duration
}

// Browser is one attached tab of the chat host. It implements
// sources.LivePage, sources.History and refresh.Sender.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    Options
	logger  *zap.Logger

	mu sync.Mutex // serialises sends
}

// Attach connects to the host tab. With a DevTools URL the matching tab of
// the running browser is attached as-is and left open on Close; otherwise a
// headless browser is launched and navigated to PageURL.
func Attach(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.DevToolsURL == "" && opts.PageURL == "" {
		return nil, &Error{Op: "attach", Message: "no devtools url or page url"}
	}

	b := &Browser{opts: opts, logger: logger}
	if opts.DevToolsURL != "" {
		if err := b.attachRemote(ctx); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	b.cancels = append(b.cancels, cancel)

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	b.cancels = append(b.cancels, cancel)
	b.ctx = browserCtx

	if err := b.run(ctx, chromedp.Navigate(opts.PageURL), chromedp.WaitReady("body")); err != nil {
		b.Close()
		return nil, &Error{Op: "attach", Message: "navigation failed", Cause: err}
	}
	logger.Info("launched host browser", zap.String("url", opts.PageURL))
	return b, nil
}

func (b *Browser) attachRemote(ctx context.Context) error {
	tabs, err := listTabs(ctx, b.opts.DevToolsURL)
	if err != nil {
		return err
	}
	tab, ok := pickTab(tabs, b.opts.PageURL)
	if !ok {
		return &Error{Op: "attach", Message: fmt.Sprintf("no tab matching %q", b.opts.PageURL)}
	}

	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, b.opts.DevToolsURL)
	b.cancels = append(b.cancels, cancel)

	// The first context of a remote allocator only disconnects on cancel.
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(tab.ID)))
	b.cancels = append(b.cancels, cancel)
	b.ctx = tabCtx

	if err := b.run(ctx); err != nil {
		return &Error{Op: "attach", Message: "failed to attach to tab", Cause: err}
	}
	b.logger.Info("attached to host tab", zap.String("url", tab.URL), zap.String("title", tab.Title))
	return nil
}

// run executes actions in the tab, bounded by the session timeout and by ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// PageHTML returns the host's message area from the live DOM.
func (b *Browser) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", &Error{Op: "page", Message: "failed to read document", Cause: err}
	}
	return fetch.ExtractRegion(html, fetch.HostRegionSelectors(), fetch.OverlaySelectors()...)
}

// Messages returns the host's chat history, oldest first.
func (b *Browser) Messages(ctx context.Context) ([]types.ChatMessage, error) {
	var raw json.RawMessage
	err := b.run(ctx, chromedp.Evaluate(chatScript, &raw))
	if errors.Is(err, chromedp.ErrJSNull) || errors.Is(err, chromedp.ErrJSUndefined) {
		return nil, sources.ErrUnavailable
	}
	if err != nil {
		return nil, &Error{Op: "messages", Message: "failed to read chat", Cause: err}
	}
	return decodeMessages(raw)
}

func decodeMessages(raw json.RawMessage) ([]types.ChatMessage, error) {
	var msgs []types.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, &Error{Op: "messages", Message: "unexpected chat shape", Cause: err}
	}
	if msgs == nil {
		return nil, sources.ErrUnavailable
	}
	return msgs, nil
}

// Send types text into the host's input box and clicks send.
func (b *Browser) Send(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fill, err := fillScript(text)
	if err != nil {
		return err
	}

	var ok bool
	if err := b.run(ctx, chromedp.Evaluate(fill, &ok)); err != nil {
		return &Error{Op: "send", Message: "failed to fill input", Cause: err}
	}
	if !ok {
		return &Error{Op: "send", Message: "input box or send button not found"}
	}

	if err := b.run(ctx,
		chromedp.Sleep(sendSettle),
		chromedp.Evaluate(clickScript, nil),
	); err != nil {
		return &Error{Op: "send", Message: "failed to click send", Cause: err}
	}

	b.logger.Debug("sent command", zap.String("text", text))
	return nil
}

const clickScript = `document.querySelector("#send_but").click()`

func fillScript(text string) (string, error) {
	quoted, err := json.Marshal(text)
	if err != nil {
		return "", fmt.Errorf("failed to encode command: %w", err)
	}
	return fmt.Sprintf(`((text) => {
	const input = document.querySelector("#send_textarea");
	const button = document.querySelector("#send_but");
	if (!input || !button) return false;
	input.value = text;
	input.dispatchEvent(new Event("input", { bubbles: true }));
	return true;
})(%s)`, quoted), nil
}

// Close detaches from the tab. A launched browser is shut down; an attached
// one is left running.
func (b *Browser) Close() {
	for i := len(b.cancels) - 1; i >= 0; i-- {
		b.cancels[i]()
	}
	b.cancels = nil
}
