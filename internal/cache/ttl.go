// Package cache provides a small TTL cache used to amortize expensive
// object construction (compiled GPU pipelines, rendered rasters)
// across calls.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL is the entry lifetime used when none is configured.
const DefaultTTL = 2 * time.Minute

// TTLCache is a thread-safe cache whose entries expire a fixed
// duration after their last access. Expired entries are reaped on
// Sweep or lazily on access. An optional evict callback runs for
// every removed value so owned resources can be destroyed.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*ttlEntry[V]
	ttl     time.Duration
	evict   func(V)
	now     func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type ttlEntry[V any] struct {
	value    V
	lastUsed time.Time
}

// New creates a TTL cache. If ttl <= 0, DefaultTTL is used. evict may
// be nil.
func New[K comparable, V any](ttl time.Duration, evict func(V)) *TTLCache[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[K, V]{
		entries: make(map[K]*ttlEntry[V]),
		ttl:     ttl,
		evict:   evict,
		now:     time.Now,
	}
}

// Get returns the cached value for key and refreshes its lifetime.
// An expired entry counts as a miss and is removed.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.now().Sub(e.lastUsed) > c.ttl {
		c.removeLocked(key, e)
		ok = false
	}
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	e.lastUsed = c.now()
	v := e.value
	c.mu.Unlock()
	c.hits.Add(1)
	return v, true
}

// GetOrCreate returns the cached value for key, creating it with
// create on a miss. create runs with the cache lock held so only one
// caller ever builds a given key; keep it bounded. A create error is
// returned without caching anything.
func (c *TTLCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.lastUsed) <= c.ttl {
			e.lastUsed = c.now()
			c.hits.Add(1)
			return e.value, nil
		}
		c.removeLocked(key, e)
	}

	c.misses.Add(1)
	v, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = &ttlEntry[V]{value: v, lastUsed: c.now()}
	return v, nil
}

// Sweep removes every expired entry. Callers typically run it on a
// ticker alongside other periodic maintenance.
func (c *TTLCache[K, V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.lastUsed) > c.ttl {
			c.removeLocked(k, e)
		}
	}
}

// Clear removes all entries, running the evict callback for each.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		c.removeLocked(k, e)
	}
}

func (c *TTLCache[K, V]) removeLocked(key K, e *ttlEntry[V]) {
	delete(c.entries, key)
	c.evictions.Add(1)
	if c.evict != nil {
		c.evict(e.value)
	}
}

// Len returns the current entry count, expired entries included until
// the next Sweep.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cumulative hit/miss/eviction counters.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns current counters.
func (c *TTLCache[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
