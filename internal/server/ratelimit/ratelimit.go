// Package ratelimit throttles API clients with per-rule token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket allows capacity requests at once, refilling at refillRate
// tokens per second.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// take consumes a token if one is available and reports the tokens left and
// how long until the next one.
func (tb *tokenBucket) take(now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(tb.tokens), 0
	}
	wait := (1 - tb.tokens) / tb.refillRate
	return false, 0, time.Duration(wait * float64(time.Second))
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	bucket     *tokenBucket
	lastAccess time.Time
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewLimiter creates a new rate limiter. A nil config uses LoadConfig.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = LoadConfig()
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanup(config.CleanupInterval)
	} else {
		close(l.done)
	}
	return l
}

// Allow checks if a request from clientID is allowed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}

	rule := Match(path, method, l.config.Rules)
	limit, window, burst := l.config.DefaultLimit, l.config.DefaultWindow, l.config.DefaultLimit
	if rule != nil {
		limit, window, burst = rule.Limit, rule.Window, rule.Burst
	}
	if limit <= 0 || window <= 0 {
		return true, Info{Allowed: true}
	}
	if burst <= 0 {
		burst = limit
	}

	now := l.now()
	key := bucketKey(clientID, rule)

	l.mu.Lock()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{bucket: newTokenBucket(burst, float64(limit)/window.Seconds(), now)}
		l.buckets[key] = e
	}
	e.lastAccess = now
	l.mu.Unlock()

	allowed, remaining, retryAfter := e.bucket.take(now)
	return allowed, Info{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}
}

func (l *Limiter) cleanup(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Hour)
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets unused for longer than idle.
func (l *Limiter) evictIdle(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.buckets {
		if e.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}
