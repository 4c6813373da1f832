package bus

import (
	"sync"
	"time"
)

const (
	dedupeTTL        = 20 * time.Minute
	dedupeMaxEntries = 5000
)

// Dedupe drops surface-native message ids already seen recently. Some
// surfaces redeliver on reconnect; without this the engine would answer the
// same message twice.
type Dedupe struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewDedupe creates an empty dedupe cache.
func NewDedupe() *Dedupe {
	return &Dedupe{entries: make(map[string]time.Time)}
}

// Seen records the key and reports whether it was already present and
// unexpired. An empty key is never deduplicated.
func (d *Dedupe) Seen(key string) bool {
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if at, ok := d.entries[key]; ok && now.Sub(at) < dedupeTTL {
		return true
	}

	if len(d.entries) >= dedupeMaxEntries {
		for k, at := range d.entries {
			if now.Sub(at) >= dedupeTTL {
				delete(d.entries, k)
			}
		}
		for len(d.entries) >= dedupeMaxEntries {
			for k := range d.entries {
				delete(d.entries, k)
				break
			}
		}
	}

	d.entries[key] = now
	return false
}
