// Package cache holds fetched dashboard results for a short freshness window.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// DefaultTTL is the freshness window applied when none is configured.
const DefaultTTL = 60 * time.Second

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is an in-memory key/value store with a fixed TTL. Stale entries are
// purged lazily on read; there is no background sweep.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL reports the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key if it is still fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Peek is Get without touching the hit and miss counters or purging.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes exactly key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Invalidate removes every key containing pattern. An empty pattern clears
// the whole cache. It returns the number of removed entries.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		return n
	}

	n := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Keys lists the keys currently held, fresh or not.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()

	return models.CacheStats{
		Entries: int64(n),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		TTL:     c.ttl,
	}
}

// Lookup is a typed Get. A stored value of another type counts as a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
