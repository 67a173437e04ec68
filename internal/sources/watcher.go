package sources

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/types"
)

// MessageHandler receives each newly appended chat message.
type MessageHandler func(msg types.ChatMessage)

// ChatLogWatcher turns appends to a chat log file into message-received
// notifications. It watches the parent directory so that hosts which
// rewrite the file through a rename are still observed.
type ChatLogWatcher struct {
	mu       sync.Mutex
	log      ChatLog
	handler  MessageHandler
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	settle   time.Duration
	seen     int
	pending  bool
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewChatLogWatcher creates a watcher for the chat log at path.
func NewChatLogWatcher(path string, handler MessageHandler, logger *zap.Logger) (*ChatLogWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SourceError{Source: "chat log watcher", Message: "failed to create watcher", Cause: err}
	}
	return &ChatLogWatcher{
		log:     ChatLog{Path: filepath.Clean(path)},
		handler: handler,
		logger:  logger,
		watcher: w,
		settle:  150 * time.Millisecond, // hosts write in several chunks
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start records the current message count and begins watching. Messages
// already in the file are not reported. Non-blocking.
func (w *ChatLogWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if msgs, err := w.log.Messages(ctx); err == nil {
		w.seen = len(msgs)
	}

	if err := w.watcher.Add(filepath.Dir(w.log.Path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return &SourceError{Source: "chat log watcher", Message: "failed to watch directory", Cause: err}
	}
	w.logger.Info("watching chat log", zap.String("path", w.log.Path), zap.Int("messages", w.seen))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *ChatLogWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("error closing chat log watcher", zap.Error(err))
	}
}

func (w *ChatLogWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.settle / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.log.Path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.pending = true
			w.lastSeen = time.Now()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("chat log watcher error", zap.Error(err))
		case <-ticker.C:
			if w.pending && time.Since(w.lastSeen) >= w.settle {
				w.pending = false
				w.dispatch(ctx)
			}
		}
	}
}

// dispatch reports messages appended since the last read. A shorter file
// means the host switched chats; the count is reset without reporting.
func (w *ChatLogWatcher) dispatch(ctx context.Context) {
	msgs, err := w.log.Messages(ctx)
	if err != nil {
		w.logger.Debug("chat log unreadable", zap.Error(err))
		return
	}
	if len(msgs) < w.seen {
		w.seen = len(msgs)
		return
	}
	fresh := msgs[w.seen:]
	w.seen = len(msgs)
	for _, m := range fresh {
		if w.handler != nil {
			w.handler(m)
		}
	}
}
