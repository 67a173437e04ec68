// Package store persists snapshots and preferences in a key/value store.
package store

import (
	"context"
	"fmt"
	"sync"
)

// KV is a key to string value store. Keys are process-wide constants and
// values are UTF-8 JSON.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Error represents a failure of the backing store.
type Error struct {
	Op      string
	Key     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("store %s", e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}

// Open selects a backend by driver name: "memory", "sqlite" (dsn is a file
// path) or "postgres" (dsn is a connection URL).
func Open(ctx context.Context, driver, dsn string) (KV, error) {
	switch driver {
	case "", "memory":
		return NewMemoryKV(), nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return ConnectPostgres(ctx, dsn)
	default:
		return nil, &Error{Op: "open", Message: fmt.Sprintf("unknown driver %q", driver)}
	}
}
