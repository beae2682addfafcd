// Package dedupe keeps the same league from being processed twice at once.
package dedupe

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Guard tracks keys whose work is in flight.
type Guard interface {
	// TryAcquire atomically marks id as in flight.
	// Returns false if id is already in flight or the guard is full.
	TryAcquire(ctx context.Context, id string) bool

	// Release clears id so it can be acquired again.
	Release(ctx context.Context, id string)

	// InFlight returns the held ids in sorted order.
	InFlight(ctx context.Context) []string

	Size() int64
}

// inMemoryGuard implements Guard with a map under a mutex.
// For bounded mode (maxSize > 0) acquisitions beyond maxSize are refused.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a new in-memory guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		held: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// TryAcquire implements Guard.
func (g *inMemoryGuard) TryAcquire(_ context.Context, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[id]; exists {
		return false
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return false
	}
	g.held[id] = struct{}{}
	g.size.Add(1)
	return true
}

// Release implements Guard.
func (g *inMemoryGuard) Release(_ context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[id]; exists {
		delete(g.held, id)
		g.size.Add(-1)
	}
}

// InFlight implements Guard.
func (g *inMemoryGuard) InFlight(_ context.Context) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.held))
	for id := range g.held {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Size returns the number of keys in flight.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
