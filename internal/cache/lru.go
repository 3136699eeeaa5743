// Package cache provides caching implementations for Kestrel.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// LRUCache is an in-memory LRU with per-entry TTL and windowed counters.
// It serves the community tier on its own and fronts Redis as L1 in the
// two-phase cache. Expired entries are reaped lazily on access.
type LRUCache struct {
	mu       sync.RWMutex
	maxSize  int
	items    map[string]*list.Element
	order    *list.List
	counters map[string]*window
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

type window struct {
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates an LRU bounded at maxSize entries (default 10000).
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		counters: make(map[string]*window),
	}
}

func nsKey(namespace, key string) string {
	return namespace + ":" + key
}

// Get returns the cached value, or nil, nil on a miss or expired entry.
func (c *LRUCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[nsKey(namespace, key)]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*lruEntry)
	if time.Now().After(entry.expiresAt) {
		c.evict(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value with a TTL, evicting the least recently used
// entries when the cache is over capacity.
func (c *LRUCache) Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	full := nsKey(namespace, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[full]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return nil
	}

	c.items[full] = c.order.PushFront(&lruEntry{
		key:       full,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	for c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.evict(oldest)
		}
	}

	return nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (c *LRUCache) Delete(ctx context.Context, namespace string, key string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[nsKey(namespace, key)]; ok {
		c.evict(elem)
	}
	return nil
}

// IncrementCounter bumps a counter that resets when its window elapses,
// returning the new count.
func (c *LRUCache) IncrementCounter(ctx context.Context, namespace string, key string, windowDur time.Duration) (int64, error) {
	if namespace == "" {
		return 0, fmt.Errorf("namespace is required")
	}
	full := nsKey(namespace, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	w, ok := c.counters[full]
	if !ok || now.After(w.expiresAt) {
		c.counters[full] = &window{count: 1, expiresAt: now.Add(windowDur)}
		return 1, nil
	}

	w.count++
	return w.count, nil
}

// Ping always succeeds; the LRU has no external dependency.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops all entries.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.counters = make(map[string]*window)
	return nil
}

// Stats reports current size and configured capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len(), c.maxSize
}

// evict removes the element from both the list and the index.
// Caller holds the write lock.
func (c *LRUCache) evict(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).key)
}
