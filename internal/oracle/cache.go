// internal/oracle/cache.go
package oracle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// priceCache keeps the last known price per mint.
type priceCache struct {
	ttl     time.Duration
	entries map[string]cachedPrice
	mu      sync.RWMutex
	now     func() time.Time

	// accessed atomically
	hits   uint64
	misses uint64
}

func newPriceCache(ttl time.Duration, now func() time.Time) *priceCache {
	return &priceCache{
		ttl:     ttl,
		entries: make(map[string]cachedPrice),
		now:     now,
	}
}

// fresh returns a cached price younger than the TTL.
func (c *priceCache) fresh(mint string) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.entries[mint]
	c.mu.RUnlock()

	if !ok || c.ttl <= 0 || c.now().Sub(entry.at) > c.ttl {
		atomic.AddUint64(&c.misses, 1)
		return decimal.Zero, false
	}
	atomic.AddUint64(&c.hits, 1)
	return entry.price, true
}

// last returns the most recent price regardless of age.
func (c *priceCache) last(mint string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[mint]
	return entry.price, ok
}

func (c *priceCache) set(mint string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[mint] = cachedPrice{price: price, at: c.now()}
}

// CacheStats reports cache hit/miss counters.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

func (c *priceCache) stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Entries: len(c.entries),
		Hits:    atomic.LoadUint64(&c.hits),
		Misses:  atomic.LoadUint64(&c.misses),
	}
}
