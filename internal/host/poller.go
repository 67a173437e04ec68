package host

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/sources"
)

// Poller turns a growing chat history into message-received notifications
// for hosts that expose no event feed of their own.
type Poller struct {
	history  sources.History
	handler  sources.MessageHandler
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	seen    int
	primed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewPoller creates a poller over history. A non-positive interval means one second.
func NewPoller(history sources.History, interval time.Duration, handler sources.MessageHandler, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		history:  history,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling in the background. The history present at the first
// successful poll is not reported. A stopped poller may be started again and
// resumes after the last message it saw.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.run(ctx, p.stopCh, p.doneCh)
}

// Stop ends polling and waits for the loop to exit. Safe to call without Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	running := p.running
	p.running = false
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()
	if !running {
		return
	}
	close(stop)
	<-done
}

func (p *Poller) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	msgs, err := p.history.Messages(ctx)
	if err != nil {
		p.logger.Debug("history poll failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	if !p.primed {
		p.primed = true
		p.seen = len(msgs)
		p.mu.Unlock()
		return
	}
	if len(msgs) < p.seen {
		// chat switched or trimmed
		p.seen = len(msgs)
		p.mu.Unlock()
		return
	}
	fresh := msgs[p.seen:]
	p.seen = len(msgs)
	p.mu.Unlock()

	for _, m := range fresh {
		p.handler(m)
	}
}
