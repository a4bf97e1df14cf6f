package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCollectionGuard implements the collection guard with a map. It only
// protects a single process.
type InMemoryCollectionGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	now     func() time.Time
}

// NewInMemoryCollectionGuard creates an empty in-memory guard
func NewInMemoryCollectionGuard() *InMemoryCollectionGuard {
	return &InMemoryCollectionGuard{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire claims key for ttl; expired claims are overwritten
func (g *InMemoryCollectionGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiresAt, ok := g.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.entries[key] = now.Add(ttl)

	// drop stale claims while holding the lock anyway
	for k, expiresAt := range g.entries {
		if !now.Before(expiresAt) {
			delete(g.entries, k)
		}
	}
	return true, nil
}

// Release frees key
func (g *InMemoryCollectionGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

// Ping always succeeds
func (g *InMemoryCollectionGuard) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op
func (g *InMemoryCollectionGuard) Close() error {
	return nil
}
