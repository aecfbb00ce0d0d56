package ttlcache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetHonorsDeadline(t *testing.T) {
	cache := New[string]()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Set("k", "v", now.Add(time.Second))

	if got, ok := cache.Get("k"); !ok || got != "v" {
		t.Fatalf("Get() = %q, %v; want v, true", got, ok)
	}

	now = now.Add(2 * time.Second)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected entry to be expired")
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	cache := New[int]()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Set("stale", 1, now.Add(time.Second))
	cache.Set("fresh", 2, now.Add(time.Hour))

	now = now.Add(time.Minute)
	if removed := cache.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Fatal("fresh entry should survive sweep")
	}
}

func TestEvictOldestDropsByInsertionOrder(t *testing.T) {
	cache := New[int]()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		cache.Set(fmt.Sprintf("k%d", i), i, now.Add(time.Hour))
		now = now.Add(time.Millisecond)
	}

	if evicted := cache.EvictOldest(0.10); evicted != 1 {
		t.Fatalf("EvictOldest() = %d, want 1", evicted)
	}
	if _, ok := cache.Get("k0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok := cache.Get("k9"); !ok {
		t.Fatal("newest entry should remain")
	}
}

func TestUpdateAppliesAtomically(t *testing.T) {
	cache := New[[]int]()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		cache.Update("k", func(value []int, exists bool) ([]int, time.Time) {
			return append(value, i), now.Add(time.Hour)
		})
	}

	got, ok := cache.Get("k")
	if !ok || len(got) != 3 {
		t.Fatalf("Get() = %v, %v; want 3 elements", got, ok)
	}
}
