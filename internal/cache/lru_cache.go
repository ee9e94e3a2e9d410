// Package cache provides a thread-safe, size-bounded cache with per-entry
// time-based expiration. The API server keys it by table fingerprint and
// block text, so repeated normalizations of the same line are served
// without rerunning the pipeline.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a thread-safe LRU cache with per-entry expiration. When full,
// Set evicts the least recently used entry; Get refreshes recency.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[K]*list.Element
	order    *list.List // front is most recently used
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// New creates a Cache holding at most capacity entries, each valid for ttl.
// A capacity of zero or less makes the cache unbounded; a ttl of zero or
// less disables expiration.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
// Returns the zero value and ok=false for a missing or expired key; an
// expired entry is removed on the spot.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	ent := elem.Value.(*entry[K, V])
	if c.expired(ent) {
		c.removeLocked(elem, ent)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores a value as the most recently used entry, evicting the least
// recently used one if the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Time{}
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry[K, V]{key: key, value: value, expires: expires})
	c.entries[key] = elem

	if c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest, oldest.Value.(*entry[K, V]))
		}
	}
}

// Invalidate clears all cached data.
func (c *Cache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of entries currently held, counting entries that
// have expired but not yet been touched.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[K, V]) expired(ent *entry[K, V]) bool {
	return !ent.expires.IsZero() && time.Now().After(ent.expires)
}

func (c *Cache[K, V]) removeLocked(elem *list.Element, ent *entry[K, V]) {
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}
