package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"availability/backend/internal/domain"
)

type lruEntry struct {
	snap      domain.Snapshot
	expiresAt time.Time
}

// LRU is an in-process SnapshotCache. A zero ttl keeps entries until evicted.
type LRU struct {
	cache *lru.Cache[string, *lruEntry]
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	c, err := lru.New[string, *lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, ttl: ttl, now: time.Now}, nil
}

func (c *LRU) Get(ctx context.Context, providerID string) (domain.Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.cache.Get(providerID)
	c.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		c.cache.Remove(providerID)
		c.mu.Unlock()
		return domain.Snapshot{}, false
	}
	return entry.snap, true
}

func (c *LRU) Set(ctx context.Context, snap domain.Snapshot) {
	entry := &lruEntry{snap: snap}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(snap.ProviderID, entry)
}

func (c *LRU) Delete(ctx context.Context, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(providerID)
}

func (c *LRU) Len() int {
	return c.cache.Len()
}
