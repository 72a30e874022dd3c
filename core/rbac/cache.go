package rbac

import (
	"context"
	"sync"
	"time"
)

// PermissionCache holds resolved permission sets for a bounded time.
type PermissionCache interface {
	GetPermissions(ctx context.Context, identityID string) ([]Permission, bool, error)
	SetPermissions(ctx context.Context, identityID string, perms []Permission, ttl time.Duration) error
	Invalidate(ctx context.Context, identityID string) error
}

type memoryCacheEntry struct {
	perms     []Permission
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryCacheEntry{}, now: time.Now}
}

func (c *MemoryCache) GetPermissions(_ context.Context, identityID string) ([]Permission, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[identityID]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false, nil
	}
	out := make([]Permission, len(e.perms))
	copy(out, e.perms)
	return out, true, nil
}

func (c *MemoryCache) SetPermissions(_ context.Context, identityID string, perms []Permission, ttl time.Duration) error {
	cp := make([]Permission, len(perms))
	copy(cp, perms)
	c.mu.Lock()
	c.entries[identityID] = memoryCacheEntry{perms: cp, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, identityID string) error {
	c.mu.Lock()
	delete(c.entries, identityID)
	c.mu.Unlock()
	return nil
}

// Sweep drops expired entries, called from the maintenance job.
func (c *MemoryCache) Sweep() int {
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
