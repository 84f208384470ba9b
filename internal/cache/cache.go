// Package cache provides a bounded in-memory cache with TTL expiry and
// least-recently-used eviction, used to memoize expensive derived results.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/attribute"
)

var cacheMeter = otel.GetMeterProvider().Meter("annai/cache")

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
}

type entry[V any] struct {
	key            string
	value          V
	insertedAt     time.Time
	lastAccessedAt time.Time
	ttl            time.Duration
}

// Cache is a fixed-capacity TTL + LRU cache. All operations are O(1)
// amortized: recency is a doubly linked list with a map from key to element.
// Expiry is checked lazily at access time; a background sweep (Start) trims
// stale entries that are never touched again. Safe for concurrent use.
type Cache[V any] struct {
	name       string
	maxSize    int
	defaultTTL time.Duration

	mu     sync.Mutex
	order  *list.List // front = most recently used
	items  map[string]*list.Element
	hits   int64
	misses int64

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a cache holding at most maxSize entries. Entries stored
// without an explicit TTL expire after defaultTTL. The name tags metrics.
func New[V any](name string, maxSize int, defaultTTL time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache[V]{
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		done:       make(chan struct{}),
	}
}

// Set stores value under key with the given TTL (0 means the default TTL).
// If the cache is at capacity, the least-recently-used entry is evicted first.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = now
		e.lastAccessedAt = now
		e.ttl = ttl
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		c.evictLRU()
	}

	el := c.order.PushFront(&entry[V]{
		key:            key,
		value:          value,
		insertedAt:     now,
		lastAccessedAt: now,
		ttl:            ttl,
	})
	c.items[key] = el
}

// Get returns the live value for key. An expired entry counts as a miss and
// is evicted on the spot; a hit refreshes recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := time.Now()

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.record("miss")
		return zero, false
	}
	e := el.Value.(*entry[V])
	if now.Sub(e.insertedAt) >= e.ttl {
		c.remove(el)
		c.misses++
		c.mu.Unlock()
		c.record("miss")
		return zero, false
	}
	e.lastAccessedAt = now
	c.order.MoveToFront(el)
	c.hits++
	v := e.value
	c.mu.Unlock()

	c.record("hit")
	return v, true
}

// Has reports whether key holds a live entry, without touching recency
// or the hit/miss counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	e := el.Value.(*entry[V])
	return time.Now().Sub(e.insertedAt) < e.ttl
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the current entry count, including not-yet-swept expired entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Hits: c.hits, Misses: c.misses, Size: c.order.Len(), MaxSize: c.maxSize}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Start launches the background sweep that evicts expired entries every
// interval. Call Close to stop it.
func (c *Cache[V]) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

// sweep evicts expired entries one at a time, re-acquiring the lock between
// checks so it never holds it longer than a single entry inspection.
func (c *Cache[V]) sweep() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	now := time.Now()
	for _, k := range keys {
		c.mu.Lock()
		if el, ok := c.items[k]; ok {
			if e := el.Value.(*entry[V]); now.Sub(e.insertedAt) >= e.ttl {
				c.remove(el)
			}
		}
		c.mu.Unlock()
	}
}

// evictLRU removes the least-recently-used entry. Caller holds mu.
func (c *Cache[V]) evictLRU() {
	if back := c.order.Back(); back != nil {
		c.remove(back)
	}
}

// remove unlinks an element. Caller holds mu.
func (c *Cache[V]) remove(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.order.Remove(el)
}

func (c *Cache[V]) record(outcome string) {
	if counter, err := cacheMeter.Int64Counter("annai.cache.lookups"); err == nil {
		counter.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("cache", c.name),
			attribute.String("outcome", outcome),
		))
	}
}
