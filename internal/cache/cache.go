// Package cache provides the shared TTL cache for LLM classification and
// evaluation results. A nil *Cache is valid and caches nothing, which is how
// cache disablement is expressed.
package cache

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a goroutine-safe, size-capped, TTL-expiring map. Entries are
// write-once per key; eviction only removes.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a cache holding at most maxEntries values for at most ttl each.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{lru: expirable.NewLRU[string, V](maxEntries, nil, ttl)}
}

// Get returns the cached value for key if present and fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.lru.Get(key)
}

// Set stores value under key.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

// Evict removes key if present.
func (c *Cache[V]) Evict(key string) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Key builds a stable cache key from ordered parts using FNV-1a.
func Key(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
