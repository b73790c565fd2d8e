package cache

import (
	"sync"
	"time"
)

// Entry is a cached value, the moment it was stored and how long it lives.
type Entry[T any] struct {
	Value      T
	InsertedAt time.Time
	TTL        time.Duration
}

// Option configures a TTLCache.
type Option[T any] func(*TTLCache[T])

// WithClock replaces time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *TTLCache[T]) { c.now = now }
}

// WithLiveness discards entries whose value fails alive on read.
func WithLiveness[T any](alive func(T) bool) Option[T] {
	return func(c *TTLCache[T]) { c.alive = alive }
}

// TTLCache keeps values keyed by stable logical names. An entry is valid
// while now - InsertedAt < its TTL; stale entries are dropped on read.
type TTLCache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	alive func(T) bool
	m     map[string]Entry[T]
}

func NewTTLCache[T any](ttl time.Duration, opts ...Option[T]) *TTLCache[T] {
	c := &TTLCache[T]{ttl: ttl, now: time.Now, m: make(map[string]Entry[T])}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it is fresh and alive.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	e, ok := c.GetEntry(key)
	return e.Value, ok
}

// GetEntry is Get with the insertion time.
func (c *TTLCache[T]) GetEntry(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return Entry[T]{}, false
	}
	if c.now().Sub(e.InsertedAt) >= e.TTL || (c.alive != nil && !c.alive(e.Value)) {
		delete(c.m, key)
		return Entry[T]{}, false
	}
	return e, true
}

// Set stores v under key with the cache's default TTL, replacing any
// previous entry.
func (c *TTLCache[T]) Set(key string, v T) {
	c.SetTTL(key, v, c.ttl)
}

// SetTTL stores v under key for ttl. A non-positive ttl means the default.
func (c *TTLCache[T]) SetTTL(key string, v T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.m[key] = Entry[T]{Value: v, InsertedAt: c.now(), TTL: ttl}
	c.mu.Unlock()
}

func (c *TTLCache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]Entry[T])
	c.mu.Unlock()
}

// Len counts stored entries, stale ones included.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// TTL is the default lifetime used by Set.
func (c *TTLCache[T]) TTL() time.Duration { return c.ttl }
