// Package sources decides which HTML fragments are scanned for a refresh and
// in what order: the live host page first, then chat history newest-first.
package sources

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/police-terminal/internal/types"
)

// ErrUnavailable signals that an optional collaborator has nothing to offer.
var ErrUnavailable = errors.New("collaborator unavailable")

// LivePage exposes the rendered host page.
type LivePage interface {
	PageHTML(ctx context.Context) (string, error)
}

// History exposes the chat host's message history, oldest first.
type History interface {
	Messages(ctx context.Context) ([]types.ChatMessage, error)
}

// Scope selects how much chat history a collection consults.
type Scope int

const (
	// ScopeLive scans the live page only.
	ScopeLive Scope = iota
	// ScopeLatest adds the single most recent message (the "update" path).
	ScopeLatest
	// ScopeRecent adds the newest RecentDepth messages (the presence check).
	ScopeRecent
	// ScopeFull adds the entire history (the "force" path).
	ScopeFull
)

// RecentDepth is the number of messages consulted by ScopeRecent.
const RecentDepth = 10

func (s Scope) String() string {
	switch s {
	case ScopeLive:
		return "live"
	case ScopeLatest:
		return "latest"
	case ScopeRecent:
		return "recent"
	case ScopeFull:
		return "full"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// depth is the number of newest messages to take; -1 means all.
func (s Scope) depth() int {
	switch s {
	case ScopeLatest:
		return 1
	case ScopeRecent:
		return RecentDepth
	case ScopeFull:
		return -1
	default:
		return 0
	}
}

// Aggregator collects fragments from the live page and the chat history.
// Either collaborator may be nil.
type Aggregator struct {
	live    LivePage
	history History
	logger  *zap.Logger
}

// NewAggregator creates an aggregator over the given collaborators.
func NewAggregator(live LivePage, history History, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{live: live, history: history, logger: logger}
}

// Collect returns the fragments to scan for a domain, in priority order:
// the live page, then history messages newest-first. Unavailable or failing
// collaborators contribute nothing; Collect itself never fails.
func (a *Aggregator) Collect(ctx context.Context, domain types.Domain, scope Scope) []types.Fragment {
	var (
		page     string
		messages []types.ChatMessage
		g        errgroup.Group
	)

	g.Go(func() error {
		page = a.pageHTML(ctx)
		return nil
	})
	if usesHistory(domain) && scope.depth() != 0 {
		g.Go(func() error {
			messages = a.messages(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var fragments []types.Fragment
	if page != "" {
		fragments = append(fragments, types.Fragment{Origin: types.OriginLive, HTML: page})
	}

	limit := scope.depth()
	taken := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if limit >= 0 && taken >= limit {
			break
		}
		taken++
		if messages[i].Text == "" {
			continue
		}
		fragments = append(fragments, types.Fragment{
			Origin: types.OriginHistory,
			Index:  len(fragments),
			HTML:   messages[i].Text,
		})
	}

	a.logger.Debug("collected fragments",
		zap.String("domain", string(domain)),
		zap.Stringer("scope", scope),
		zap.Bool("live", page != ""),
		zap.Int("messages", len(messages)),
		zap.Int("fragments", len(fragments)))

	return fragments
}

// usesHistory reports whether chat history is a source for the domain.
// News is read from the live page only.
func usesHistory(domain types.Domain) bool {
	return domain != types.DomainNews
}

func (a *Aggregator) pageHTML(ctx context.Context) (html string) {
	if a.live == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("live page panicked", zap.Any("panic", r))
			html = ""
		}
	}()

	html, err := a.live.PageHTML(ctx)
	if err != nil {
		a.logger.Warn("live page unavailable", zap.Error(err))
		return ""
	}
	return html
}

func (a *Aggregator) messages(ctx context.Context) (msgs []types.ChatMessage) {
	if a.history == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("chat history panicked", zap.Any("panic", r))
			msgs = nil
		}
	}()

	msgs, err := a.history.Messages(ctx)
	if err != nil {
		a.logger.Warn("chat history unavailable", zap.Error(err))
		return nil
	}
	return msgs
}
