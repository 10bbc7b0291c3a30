// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package cache provides a small TTL cache for generated content batches.
// Content generation is idempotent within an ISO week, so serving a cached
// batch is indistinguishable from regenerating it; the TTL only bounds how
// long stage transitions (driven by new clicks) take to surface.
package cache

import (
	"sync"
	"time"

	"github.com/dealhound/dealhound/internal/metrics"
)

// DefaultTTL is the default entry lifetime.
const DefaultTTL = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe in-memory cache with per-entry expiration. Expired
// entries are dropped lazily on Get and swept whenever Set doubles the map
// beyond its last sweep size.
type TTL[V any] struct {
	mu        sync.RWMutex
	entries   map[string]entry[V]
	ttl       time.Duration
	sweepSize int
}

// New creates a TTL cache. A non-positive ttl falls back to DefaultTTL.
func New[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[V]{
		entries:   make(map[string]entry[V]),
		ttl:       ttl,
		sweepSize: 64,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheOps.WithLabelValues("miss").Inc()
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
			metrics.CacheOps.WithLabelValues("eviction").Inc()
		}
		c.mu.Unlock()
		metrics.CacheOps.WithLabelValues("miss").Inc()
		var zero V
		return zero, false
	}

	metrics.CacheOps.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	if len(c.entries) >= c.sweepSize {
		c.sweepLocked()
		c.sweepSize = len(c.entries)*2 + 64
	}
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry[V])
	return n
}

// Len returns the current entry count, expired entries included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTL[V]) sweepLocked() {
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			metrics.CacheOps.WithLabelValues("eviction").Inc()
		}
	}
}
