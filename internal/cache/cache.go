// Package cache provides an in-memory cache with TTL expiry, used to keep
// loaded zone data between queries.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// Default cleanup interval for expired items
	defaultCleanupInterval = time.Minute
)

// Stats holds cache statistics.
// Note: This type name stutters with package name but is kept for API compatibility.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
	HitRate   float64
}

// MemoryCache implements an in-memory cache with TTL support. It is safe for
// concurrent use.
type MemoryCache[V any] struct {
	data    map[string]*cacheItem[V]
	mu      sync.Mutex
	maxSize int
	stats   Stats
	clock   clockwork.Clock
	ticker  clockwork.Ticker
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// cacheItem represents a cached item with metadata
type cacheItem[V any] struct {
	value       V
	expiresAt   time.Time
	createdAt   time.Time
	accessCount int64
}

// NewMemoryCache creates a new in-memory cache holding at most maxSize
// items
func NewMemoryCache[V any](maxSize int) *MemoryCache[V] {
	return NewMemoryCacheWithClock[V](maxSize, clockwork.NewRealClock())
}

// NewMemoryCacheWithClock creates a new in-memory cache driven by clock
func NewMemoryCacheWithClock[V any](maxSize int, clock clockwork.Clock) *MemoryCache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &MemoryCache[V]{
		data:    make(map[string]*cacheItem[V]),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
		clock:   clock,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// Start cleanup goroutine
	c.startCleanup()

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Check if item has expired
	if !c.clock.Now().Before(item.expiresAt) {
		delete(c.data, key)
		c.stats.Size = len(c.data)
		c.stats.Evictions++
		c.stats.Misses++
		var zero V
		return zero, false
	}

	item.accessCount++
	c.stats.Hits++
	return item.value, true
}

// Set stores a value in the cache with TTL
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if we need to evict items
	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictLFU()
	}

	now := c.clock.Now()
	c.data[key] = &cacheItem[V]{
		value:     value,
		expiresAt: now.Add(ttl),
		createdAt: now,
	}

	c.stats.Size = len(c.data)
}


// GetStats returns cache statistics
func (c *MemoryCache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// evictLFU removes the least frequently used item, oldest first on ties.
// c.mu must be held.
func (c *MemoryCache[V]) evictLFU() {
	var oldestKey string
	var oldestTime time.Time
	var lowestAccess int64 = -1

	for key, item := range c.data {
		if lowestAccess == -1 || item.accessCount < lowestAccess {
			oldestKey = key
			lowestAccess = item.accessCount
			oldestTime = item.createdAt
		} else if item.accessCount == lowestAccess && item.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.data, oldestKey)
		c.stats.Evictions++
	}
}

// startCleanup starts the cleanup goroutine
func (c *MemoryCache[V]) startCleanup() {
	c.ticker = c.clock.NewTicker(defaultCleanupInterval)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ticker.Chan():
				c.cleanup()
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

// cleanup removes expired items
func (c *MemoryCache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, item := range c.data {
		if !now.Before(item.expiresAt) {
			delete(c.data, key)
			c.stats.Evictions++
		}
	}

	c.stats.Size = len(c.data)
}

// Close stops the cleanup goroutine and waits for it to exit
func (c *MemoryCache[V]) Close() {
	c.cancel()
	c.ticker.Stop()
	<-c.done
}
