// Package cache is a time-boxed response cache keyed by caller-chosen strings.
//
// Entries expire lazily: there is no background sweeper and no size bound.
// An expired entry is purged the first time it is read.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Event is reported to an Observer on every Get.
type Event int

const (
	Hit Event = iota
	Miss
	Expired
)

// Observer is notified of cache lookups (metrics hook).
type Observer func(key string, ev Event)

// Stats counts cache activity since creation.
type Stats struct {
	Hits      int64
	Misses    int64
	Expired   int64
	Evictions int64
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache maps keys to values with an expiry.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	now      Clock
	observer Observer
	stats    Stats
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects the time source used for expiry.
func WithClock(now Clock) Option {
	return func(c *Cache) { c.now = now }
}

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live value stored under key. An entry whose expiry is at or
// before the current time is removed and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	ev := Hit
	switch {
	case !ok:
		ev = Miss
		c.stats.Misses++
	case !c.now().Before(e.expiresAt):
		delete(c.entries, key)
		ev = Expired
		c.stats.Expired++
		c.stats.Misses++
	default:
		c.stats.Hits++
	}
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs(key, ev)
	}
	if ev != Hit {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl, replacing any previous entry.
// A ttl of zero or less is stale on the next read.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Evict removes the named keys, or every entry when called without keys.
func (c *Cache) Evict(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.stats.Evictions += int64(len(c.entries))
		c.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		if _, ok := c.entries[k]; ok {
			delete(c.entries, k)
			c.stats.Evictions++
		}
	}
}

// Len is the number of stored entries, including ones not yet purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
