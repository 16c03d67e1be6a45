// Package cache provides a bounded, expiring in-memory cache.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// TTLCache maps keys to values that expire after a fixed TTL. When MaxSize
// is reached the least recently used entry is evicted. Safe for concurrent
// use.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache. A ttl of zero disables expiry and a maxSize of zero
// disables the size cap.
func New[K comparable, V any](ttl time.Duration, maxSize int, opts ...Option) *TTLCache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		entries: make(map[K]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     o.now,
	}
}

// Get returns the live value for key.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	e := elem.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, replacing any previous value and resetting
// its expiry.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(elem)
		return
	}

	c.entries[key] = c.lru.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		c.removeElement(c.lru.Back())
	}
}

// Delete removes key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Purge drops every expired entry and returns how many were dropped.
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry[K, V])) {
			c.removeElement(elem)
			n++
		}
		elem = prev
	}
	return n
}

// Clear removes everything.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.lru.Init()
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns hit and miss counts.
func (c *TTLCache[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *TTLCache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*entry[K, V]).key)
}
