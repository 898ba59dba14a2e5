// Package cache provides the in-memory TTL cache used for fetched rows and
// recommendation results. It is an injected service: each engine owns one.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// valid reports whether the entry is still fresh at now.
func (e entry[V]) valid(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// TTL is a concurrent map whose entries expire ttl after they were stored.
// Expired entries are treated as absent and deleted on the next lookup.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
	clone   func(V) V
}

// Option configures a TTL cache
type Option[V any] func(*TTL[V])

// WithClock replaces time.Now, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTL[V]) { c.now = now }
}

// WithCloner copies values on the way in and out, so callers never hold a
// reference to the stored value.
func WithCloner[V any](clone func(V) V) Option[V] {
	return func(c *TTL[V]) { c.clone = clone }
}

// New creates an empty cache
func New[V any](opts ...Option[V]) *TTL[V] {
	c := &TTL[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it is present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if !e.valid(now) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && !cur.valid(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	if c.clone != nil {
		return c.clone(e.value), true
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
// A non-positive ttl can never be valid, so it removes the key instead.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		c.Invalidate(key)
		return
	}
	if c.clone != nil {
		value = c.clone(value)
	}
	now := c.now()

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: now, ttl: ttl}
	c.mu.Unlock()
}

// Invalidate removes key immediately.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every key starting with prefix and returns how
// many were removed.
func (c *TTL[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included until they
// are looked up or purged.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear removes everything.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}
