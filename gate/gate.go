// Package gate provides the feature-flag boolean gate the scheduler policy
// selection depends on, fronted by an explicit bounded TTL cache. The cache
// is a component the caller constructs and injects; nothing in the engine
// hides a process-wide cache.
package gate

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Provider answers flag lookups. Implementations typically wrap a remote
// flag service; errors and timeouts are theirs to surface.
type Provider interface {
	Enabled(ctx context.Context, userID, flag string) (bool, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, userID, flag string) (bool, error)

// Enabled implements Provider.
func (f ProviderFunc) Enabled(ctx context.Context, userID, flag string) (bool, error) {
	return f(ctx, userID, flag)
}

// Static is a Provider backed by a fixed flag set, keyed by flag name.
// Useful for tests and single-tenant deployments.
type Static map[string]bool

// Enabled implements Provider.
func (s Static) Enabled(_ context.Context, _ string, flag string) (bool, error) {
	return s[flag], nil
}

// Cache is a bounded, TTL-expiring LRU cache over a Provider. Lookups that
// fail fall back to false (flag disabled) and are not cached, so a flag
// service outage degrades to the default policy rather than an error.
type Cache struct {
	provider   Provider
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key       string
	enabled   bool
	expiresAt time.Time
}

// NewCache creates a cache over the provider. Non-positive maxEntries or
// ttl fall back to 1024 entries and 1 minute.
func NewCache(provider Provider, maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		provider:   provider,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Enabled returns the cached flag value, consulting the provider on miss or
// expiry. A provider error yields false without caching.
func (c *Cache) Enabled(ctx context.Context, userID, flag string) bool {
	key := userID + "\x00" + flag

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			c.order.MoveToFront(elem)
			enabled := entry.enabled
			c.mu.Unlock()
			return enabled
		}
		c.order.Remove(elem)
		delete(c.entries, key)
	}
	c.mu.Unlock()

	enabled, err := c.provider.Enabled(ctx, userID, flag)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.enabled = enabled
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return enabled
	}
	if c.order.Len() >= c.maxEntries {
		c.evictOldest()
	}
	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		enabled:   enabled,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = elem
	return enabled
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops all cached entries.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}
