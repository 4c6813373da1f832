package autoreply

import (
	"sync"
	"time"
)

// abortCache remembers abort requests for sessions that have no store entry
// yet, so the hint survives until the entry is first written. Bounded and
// TTL-limited so unmatched keys cannot accumulate.
type abortCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	max     int
	ttl     time.Duration
	now     func() time.Time
}

func newAbortCache() *abortCache {
	return &abortCache{
		entries: make(map[string]time.Time),
		max:     512,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

// Mark records an abort for the key, evicting expired then oldest entries
// when full.
func (c *abortCache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, at := range c.entries {
		if now.Sub(at) > c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= c.max {
		var oldestKey string
		var oldestAt time.Time
		for k, at := range c.entries {
			if oldestKey == "" || at.Before(oldestAt) {
				oldestKey, oldestAt = k, at
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = now
}

// Take consumes a pending abort for the key, reporting whether one existed
// and was still live.
func (c *abortCache) Take(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	return c.now().Sub(at) <= c.ttl
}
