package cache

import (
	"context"
	"sync"
	"time"

	"aqualedger/backend/internal/domain"
)

// SessionCache holds live login sessions keyed by opaque session id.
type SessionCache interface {
	Get(ctx context.Context, id string) (*domain.Session, bool, error)
	Set(ctx context.Context, session domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemorySessionCache is a process-local SessionCache.
type MemorySessionCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemorySessionCache) Get(_ context.Context, id string) (*domain.Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, id)
		return nil, false, nil
	}
	session := entry.session
	return &session, true, nil
}

func (c *MemorySessionCache) Set(_ context.Context, session domain.Session, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[session.ID] = memoryEntry{session: session, expiresAt: c.now().Add(ttl)}
	c.pruneLocked()
	return nil
}

func (c *MemorySessionCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
	return nil
}

func (c *MemorySessionCache) pruneLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}
