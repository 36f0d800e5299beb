package application

import (
	"testing"
	"time"
)

func TestViewCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newViewCache(time.Minute, 4, func() time.Time { return current })

	deadline := NewDate(2024, 5, 10)
	original := []Event{{ID: "event-1", Name: "Expo", Deadline: &deadline}}
	cache.Store("key", original)

	// Mutating the original slice should not affect the cached copy.
	original[0].Name = "mutated"
	original[0].Deadline.Day = 20

	cached, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].Name != "Expo" {
		t.Fatalf("expected cached name to remain unchanged, got %s", cached[0].Name)
	}
	if cached[0].Deadline.Day != 10 {
		t.Fatalf("expected cached deadline to remain unchanged, got %v", cached[0].Deadline)
	}

	// Mutating the returned slice should not be visible on subsequent reads.
	cached[0].Name = "changed"
	cachedAgain, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].Name != "Expo" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].Name)
	}
}

func TestViewCacheExpiresEntries(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newViewCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", []Event{{ID: "event-1"}})
	if _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestViewCacheEvictsOldestWhenFull(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newViewCache(time.Minute, 2, func() time.Time { return current })

	cache.Store("first", []Event{{ID: "a"}})
	current = current.Add(time.Second)
	cache.Store("second", []Event{{ID: "b"}})
	current = current.Add(time.Second)
	cache.Store("third", []Event{{ID: "c"}})

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get("first"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("third"); !ok {
		t.Fatalf("expected newest entry to be present")
	}
}

func TestViewCacheInvalidate(t *testing.T) {
	cache := newViewCache(time.Minute, 4, time.Now)
	cache.Store("key", []Event{{ID: "event-1"}})
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}
