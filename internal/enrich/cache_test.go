// internal/enrich/cache_test.go
package enrich

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache", "enrich.db"), time.Hour)
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	hit := Query{Title: "Moving", Year: 2023, MediaType: "tv"}
	miss := Query{Title: "Nowhere", MediaType: "movie"}

	if _, ok, err := cache.Get(ctx, hit); err != nil || ok {
		t.Fatalf("empty cache should miss: ok=%v err=%v", ok, err)
	}

	if err := cache.Put(ctx, hit, movingMetadata()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, miss, nil); err != nil {
		t.Fatalf("Put miss failed: %v", err)
	}

	md, ok, err := cache.Get(ctx, Query{Title: " moving ", Year: 2023, MediaType: "tv"})
	if err != nil || !ok || md == nil || md.Overview != "Teens with powers." {
		t.Fatalf("expected cached metadata, got %+v ok=%v err=%v", md, ok, err)
	}

	md, ok, err = cache.Get(ctx, miss)
	if err != nil || !ok || md != nil {
		t.Errorf("expected remembered miss, got %+v ok=%v err=%v", md, ok, err)
	}

	// overwrite a miss with a hit
	if err := cache.Put(ctx, miss, &Metadata{Title: "Found"}); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	if md, _, _ := cache.Get(ctx, miss); md == nil || md.Title != "Found" {
		t.Errorf("expected overwritten entry, got %+v", md)
	}

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, _ := cache.Get(ctx, hit); ok {
		t.Error("expired entry should not be served")
	}
}
