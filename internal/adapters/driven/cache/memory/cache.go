// Package memory implements driven.Cache as a bounded in-process map.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.Cache = (*Cache)(nil)

// DefaultMaxEntries bounds the cache when no size is given.
const DefaultMaxEntries = 10000

type item struct {
	value   []byte
	expires time.Time
}

// Cache is a map with expiry. When full, expired entries are dropped first,
// then an arbitrary entry.
type Cache struct {
	mu    sync.Mutex
	items map[string]item
	max   int
	now   func() time.Time
}

// New creates a cache holding at most maxEntries values.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{items: make(map[string]item), max: maxEntries, now: time.Now}
}

// Get returns the cached value and whether it was present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && !c.now().Before(it.expires) {
		delete(c.items, key)
		return nil, false, nil
	}
	return it.value, true, nil
}

// Set stores a value. A zero ttl never expires.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.max {
		c.evict()
	}
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

func (c *Cache) evict() {
	now := c.now()
	for k, it := range c.items {
		if !it.expires.IsZero() && !now.Before(it.expires) {
			delete(c.items, k)
		}
	}
	if len(c.items) < c.max {
		return
	}
	for k := range c.items {
		delete(c.items, k)
		return
	}
}
