package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

const (
	defaultMaxSize         = 100
	defaultTTL             = time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// entry stores a value and its expiry time.
type entry[V any] struct {
	val   V
	expAt time.Time
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
}

// Cache is a bounded TTL cache. When full, the oldest inserted key is evicted.
// Reads never change the eviction order.
type Cache[V any] struct {
	mu      sync.Mutex
	data    map[string]entry[V]
	order   []string // insertion order, oldest first
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits, misses, evictions, expirations uint64
}

// New constructs a cache holding at most maxSize entries for ttl each.
// Non-positive values fall back to 100 entries and one hour.
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache[V]{
		data:    make(map[string]entry[V], maxSize),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.data[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.now().After(item.expAt) {
		c.removeLocked(key)
		c.expirations++
		c.misses++
		return zero, false
	}
	c.hits++
	return item.val, true
}

// Set stores value under key for the configured TTL.
// Inserting a new key into a full cache evicts the oldest inserted entry first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		if len(c.data) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.data, oldest)
			c.evictions++
		}
		c.order = append(c.order, key)
	}
	c.data[key] = entry[V]{val: value, expAt: c.now().Add(c.ttl)}
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.data)
	c.order = c.order[:0]
}

// Size returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	// snapshot expired keys first, then delete them in a second critical section
	c.mu.Lock()
	now := c.now()
	var expired []string
	for k, item := range c.data {
		if item.expAt.Before(now) {
			expired = append(expired, k)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range expired {
		item, ok := c.data[k]
		// a concurrent Set may have refreshed the entry since the snapshot
		if !ok || !item.expAt.Before(now) {
			continue
		}
		c.removeLocked(k)
		removed++
	}
	c.expirations += uint64(removed)
	return removed
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (c *Cache[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        len(c.data),
	}
}

// removeLocked deletes key from the map and the insertion queue. Caller holds mu.
func (c *Cache[V]) removeLocked(key string) {
	delete(c.data, key)
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}
