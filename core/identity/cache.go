package identity

import (
	"sync"
	"time"

	"medrota-iam/core/store"
)

// profileCache keeps identity profiles warm for a bounded time so token
// checks avoid a DB round trip per request.
type profileCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]profileEntry
	now     func() time.Time
}

type profileEntry struct {
	profile   store.IdentityWithRoles
	expiresAt time.Time
}

func newProfileCache(ttl time.Duration) *profileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &profileCache{ttl: ttl, entries: map[string]profileEntry{}, now: time.Now}
}

func (c *profileCache) get(id string) (store.IdentityWithRoles, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return store.IdentityWithRoles{}, false
	}
	return e.profile, true
}

func (c *profileCache) set(id string, profile store.IdentityWithRoles) {
	c.mu.Lock()
	c.entries[id] = profileEntry{profile: profile, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *profileCache) invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *profileCache) sweep() int {
	now := c.now()
	removed := 0
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}
