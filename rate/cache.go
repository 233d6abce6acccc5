package rate

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCacheTTL matches the refresh interval of the upstream spot sources.
const DefaultCacheTTL = 60 * time.Second

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Cache is an explicit time-to-live cache for spot rates, passed by
// reference into every Locker that should share it.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedRate
}

// NewCache creates a Cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cachedRate),
	}
}

// Get returns the cached rate for key if present and fresh.
func (c *Cache) Get(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return decimal.Decimal{}, false
	}
	return e.rate, true
}

// GetStale returns the cached rate for key regardless of freshness.
func (c *Cache) GetStale(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.rate, true
}

// Set stores a rate for key, stamped now.
func (c *Cache) Set(key string, r decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedRate{rate: r, fetchedAt: time.Now()}
}

// IsStale reports whether key is absent or past its TTL.
func (c *Cache) IsStale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return !ok || time.Since(e.fetchedAt) > c.ttl
}

// Len returns the number of cached keys (fresh or stale).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
