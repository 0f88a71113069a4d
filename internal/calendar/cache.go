package calendar

import (
	"context"
	"sync"
	"time"

	"planline/internal/interval"
)

// Cache is a read-through cache of fetched busy intervals keyed by user.
// A cached entry satisfies a request only when its range fully contains
// the requested range and its age is below the TTL. Entries are replaced
// wholesale on a miss and invalidated eagerly on any write by the same
// user. Constructed once per process and injected; never a global.
type Cache struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	rangeStart time.Time
	rangeEnd   time.Time
	busy       []interval.Busy
	fetchedAt  time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{TTL: ttl, entries: make(map[string]cacheEntry)}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the cached busy set when coverage and freshness both hold.
func (c *Cache) Get(userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.TTL {
		return nil, false
	}
	if rangeStart.Before(e.rangeStart) || rangeEnd.After(e.rangeEnd) {
		return nil, false
	}
	return e.busy, true
}

// Set replaces the user's entry wholesale.
func (c *Cache) Set(userID string, rangeStart, rangeEnd time.Time, busy []interval.Busy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = cacheEntry{
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		busy:       busy,
		fetchedAt:  c.now(),
	}
}

// Invalidate drops the user's entry.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// CachedSource wraps a source with the read-through cache.
type CachedSource struct {
	Source Source
	Cache  *Cache
}

func (s CachedSource) Name() string { return s.Source.Name() }

func (s CachedSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	if busy, ok := s.Cache.Get(userID, rangeStart, rangeEnd); ok {
		return busy, nil
	}
	busy, err := s.Source.FetchBusy(ctx, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(userID, rangeStart, rangeEnd, busy)
	return busy, nil
}
