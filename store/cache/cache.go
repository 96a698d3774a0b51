// Package cache provides a small in-process TTL cache used by the store
// for hot, rarely-changing rows (collections).
package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the cache configuration.
type Config struct {
	// DefaultTTL is applied by Set; SetWithTTL overrides it per entry.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size; when full, Set evicts the entry
	// closest to expiry.
	MaxItems int
	// OnEviction, if set, is called after an entry is evicted or expires.
	OnEviction func(key string, value any)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe in-memory cache with per-entry TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	config  Config

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a cache and starts its background sweeper.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	c := &Cache{
		entries:     make(map[string]entry),
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Set stores a value with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with an explicit TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxItems {
		c.evictSoonestLocked()
	}
	c.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// evictSoonestLocked drops the entry closest to expiry. Caller holds mu.
func (c *Cache) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for key, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = key
			soonest = e.expiresAt
		}
	}
	if victim != "" {
		evicted := c.entries[victim]
		delete(c.entries, victim)
		if c.config.OnEviction != nil {
			c.config.OnEviction(victim, evicted.value)
		}
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			if c.config.OnEviction != nil {
				c.config.OnEviction(key, e.value)
			}
		}
	}
}
