package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"strmsync/internal/logging"
)

func TestCachePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metadata_cache.db")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache, err := OpenCache(ctx, path, logging.NewNop())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	cache.Put(CacheEntry{Key: "movie:alien:1979", Kind: KindMovie, ExternalID: 348, Confidence: 100, LookedUpAt: now})
	cache.Put(CacheEntry{Key: "series:nothing here", Kind: KindSeries, LookedUpAt: now})
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenCache(ctx, path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	if reopened.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", reopened.Len())
	}
	hit, ok := reopened.Get("movie:alien:1979", 0, now)
	if !ok || hit.ExternalID != 348 || !hit.Found() || hit.Kind != KindMovie {
		t.Fatalf("unexpected hit %+v ok=%v", hit, ok)
	}
	miss, ok := reopened.Get("series:nothing here", 0, now)
	if !ok || miss.Found() {
		t.Fatalf("expected cached not-found entry, got %+v ok=%v", miss, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, err := OpenCache(context.Background(), "", logging.NewNop())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	looked := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.Put(CacheEntry{Key: "movie:heat", Kind: KindMovie, ExternalID: 949, LookedUpAt: looked})

	if _, ok := cache.Get("movie:heat", 24*time.Hour, looked.Add(2*time.Hour)); !ok {
		t.Fatal("expected fresh entry")
	}
	if _, ok := cache.Get("movie:heat", 24*time.Hour, looked.Add(48*time.Hour)); ok {
		t.Fatal("expected stale entry to be ignored")
	}
}

func TestCachePurge(t *testing.T) {
	ctx := context.Background()
	cache, err := OpenCache(ctx, filepath.Join(t.TempDir(), "c.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	cache.Put(CacheEntry{Key: "movie:heat", Kind: KindMovie, ExternalID: 949, LookedUpAt: time.Now()})
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := cache.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", cache.Len())
	}
}
