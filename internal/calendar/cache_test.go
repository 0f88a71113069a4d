package calendar

import (
	"context"
	"testing"
	"time"

	"planline/internal/interval"
)

type countingSource struct {
	calls int
	busy  []interval.Busy
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	s.calls++
	return s.busy, nil
}

func TestCacheReadThrough(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	cache := NewCache(10 * time.Minute)
	cache.Now = func() time.Time { return now }
	src := &countingSource{busy: []interval.Busy{{
		Kind:  interval.BusyEvent,
		Start: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC),
	}}}
	cached := CachedSource{Source: src, Cache: cache}

	rangeStart := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	busy, err := cached.FetchBusy(context.Background(), "u1", rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(busy) != 1 || src.calls != 1 {
		t.Fatalf("expected 1 busy from 1 fetch, got %d busy, %d calls", len(busy), src.calls)
	}

	if _, err := cached.FetchBusy(context.Background(), "u1", rangeStart, rangeEnd); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected cache hit, source called %d times", src.calls)
	}
}

func TestCacheRequiresFullCoverage(t *testing.T) {
	cache := NewCache(10 * time.Minute)
	src := &countingSource{}
	cached := CachedSource{Source: src, Cache: cache}

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if _, err := cached.FetchBusy(context.Background(), "u1", day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// Wider range than the cached entry forces a refetch.
	if _, err := cached.FetchBusy(context.Background(), "u1", day, day.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected refetch on wider range, got %d calls", src.calls)
	}
	// Sub-range of the new entry is served from cache.
	if _, err := cached.FetchBusy(context.Background(), "u1", day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected hit on contained range, got %d calls", src.calls)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	cache := NewCache(10 * time.Minute)
	cache.Now = func() time.Time { return now }
	src := &countingSource{}
	cached := CachedSource{Source: src, Cache: cache}

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if _, err := cached.FetchBusy(context.Background(), "u1", day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := cached.FetchBusy(context.Background(), "u1", day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", src.calls)
	}
}

func TestCacheInvalidateIsPerUser(t *testing.T) {
	cache := NewCache(10 * time.Minute)
	src := &countingSource{}
	cached := CachedSource{Source: src, Cache: cache}

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	for _, user := range []string{"u1", "u2"} {
		if _, err := cached.FetchBusy(context.Background(), user, day, day.AddDate(0, 0, 1)); err != nil {
			t.Fatalf("fetch %s: %v", user, err)
		}
	}
	cache.Invalidate("u1")
	if _, err := cached.FetchBusy(context.Background(), "u2", day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("u2 entry should survive u1 invalidation, got %d calls", src.calls)
	}
	if _, err := cached.FetchBusy(context.Background(), "u1", day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.calls != 3 {
		t.Fatalf("u1 entry should be gone after invalidation, got %d calls", src.calls)
	}
}
