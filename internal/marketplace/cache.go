package marketplace

import (
	"sync"
	"time"
)

// searchCache is a bounded TTL cache of search responses keyed by barcode.
// Eviction is oldest-timestamp-first when the capacity is exceeded. Each
// client owns its own instance; nothing here is process-global.
type searchCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]cacheEntry
	now      func() time.Time
}

type cacheEntry struct {
	resp     *searchResponse
	storedAt time.Time
}

func newSearchCache(ttl time.Duration, capacity int) *searchCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &searchCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}
}

func (c *searchCache) get(key string) (*searchResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.resp, true
}

func (c *searchCache) put(key string, resp *searchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, storedAt: c.now()}
	for len(c.entries) > c.capacity {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey = k
				oldest = e.storedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *searchCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
