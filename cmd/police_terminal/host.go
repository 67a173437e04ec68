package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/config"
	"github.com/jonathan/police-terminal/internal/fetch"
	"github.com/jonathan/police-terminal/internal/host"
	"github.com/jonathan/police-terminal/internal/refresh"
	"github.com/jonathan/police-terminal/internal/sources"
)

// hostConn is the chat host as seen by the pipeline: where the live page
// and history come from, how commands are sent, and how new messages are
// noticed.
type hostConn struct {
	live    sources.LivePage
	history sources.History
	sender  refresh.Sender

	browser  *host.Browser
	chatLog  string
	interval time.Duration
	logger   *zap.Logger
}

// openHost connects to the host described by hc.
func openHost(ctx context.Context, hc config.HostConfig, logger *zap.Logger) (*hostConn, error) {
	conn := &hostConn{
		sender:   host.NoopSender{Logger: logger},
		chatLog:  hc.ChatLog,
		interval: hc.PollInterval.Std(),
		logger:   logger,
	}
	if hc.ChatLog != "" {
		conn.history = sources.ChatLog{Path: hc.ChatLog}
	}

	switch hc.Mode {
	case config.HostModeFile, "":
		conn.live = sources.FilePage{Path: hc.PageFile}
	case config.HostModeHTTP:
		conn.live = sources.HTTPPage{URL: hc.PageURL, Options: fetch.DefaultOptions()}
	case config.HostModeRender:
		conn.live = sources.RenderedPage{URL: hc.PageURL, Options: fetch.DefaultBrowserOptions(), Logger: logger}
	case config.HostModeBrowser:
		b, err := host.Attach(ctx, host.Options{DevToolsURL: hc.DevToolsURL, PageURL: hc.PageURL}, logger)
		if err != nil {
			return nil, err
		}
		conn.browser = b
		conn.live = b
		conn.history = b
		conn.sender = b
	default:
		return nil, fmt.Errorf("unknown host mode %q", hc.Mode)
	}
	return conn, nil
}

// watch starts reporting newly received chat messages to handler. The
// returned stop function is never nil.
func (h *hostConn) watch(ctx context.Context, handler sources.MessageHandler) (func(), error) {
	switch {
	case h.browser != nil:
		p := host.NewPoller(h.browser, h.interval, handler, h.logger)
		p.Start(ctx)
		return p.Stop, nil
	case h.chatLog != "":
		w, err := sources.NewChatLogWatcher(h.chatLog, handler, h.logger)
		if err != nil {
			return func() {}, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return func() {}, err
		}
		return w.Stop, nil
	default:
		h.logger.Warn("no chat log or browser configured; waits resolve only through POST /messages")
		return func() {}, nil
	}
}

// Close releases the browser session, if any.
func (h *hostConn) Close() {
	if h.browser != nil {
		h.browser.Close()
	}
}
