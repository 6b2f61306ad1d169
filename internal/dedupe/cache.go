// ABOUTME: Thread-safe TTL cache that maps request keys to the first value stored
// ABOUTME: Used by the IPC endpoint to collapse retried requests onto one call

package dedupe

import (
	"container/list"
	"sync"
	"time"

	"github.com/juju/clock"
)

// cacheEntry stores the value, timestamp and list element for a cached key.
type cacheEntry[V any] struct {
	value     V
	timestamp time.Time
	element   *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited map from keys to values.
// Expired entries are dropped lazily on access. A doubly-linked list keeps
// insertion order for O(1) eviction of the oldest entry.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
}

// New creates a cache with the given TTL and maximum size.
func New[V any](ttl time.Duration, maxSize int, clk clock.Clock) *Cache[V] {
	if clk == nil {
		clk = clock.WallClock
	}
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clk,
	}
}

// Get returns the live value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.liveLocked(key)
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// LoadOrStore returns the live value for key if there is one. Otherwise it
// stores and returns create(). The bool reports whether the value was
// already present. create runs with the cache locked and must not block.
func (c *Cache[V]) LoadOrStore(key string, create func() V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.liveLocked(key); ok {
		return entry.value, true
	}

	v := create()
	c.storeLocked(key, v)
	return v, false
}

// Len returns the number of entries, including expired ones not yet dropped.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// liveLocked returns the entry for key, dropping it if expired.
// Must be called with mu held.
func (c *Cache[V]) liveLocked(key string) (*cacheEntry[V], bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.timestamp) >= c.ttl {
		c.order.Remove(entry.element)
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

// storeLocked adds key, evicting the oldest entries while
// the cache is at capacity. Must be called with mu held.
func (c *Cache[V]) storeLocked(key string, v V) {
	now := c.clock.Now()

	for len(c.entries) >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		oldest, _ := front.Value.(string)
		c.order.Remove(front)
		delete(c.entries, oldest)
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry[V]{value: v, timestamp: now, element: elem}
}
