package embed

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	cache := NewCache(10)

	key := cache.Key("text", []byte("winter"))
	if _, found := cache.Get(key); found {
		t.Error("Expected miss on empty cache")
	}

	vector := []float32{0.1, 0.2, 0.3}
	cache.Set(key, vector)

	got, found := cache.Get(key)
	if !found {
		t.Fatal("Expected hit after Set")
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("Value %d: expected %f, got %f", i, vector[i], got[i])
		}
	}
}

func TestCacheKeyNamespacing(t *testing.T) {
	cache := NewCache(10)

	content := []byte("same bytes")
	textKey := cache.Key("text", content)
	imageKey := cache.Key("image", content)
	if textKey == imageKey {
		t.Error("Expected text and image keys to differ for identical content")
	}
}

func TestCacheCopiesVectors(t *testing.T) {
	cache := NewCache(10)

	original := []float32{1, 2, 3}
	key := cache.Key("text", []byte("x"))
	cache.Set(key, original)

	// Mutating the input after Set must not affect the cache.
	original[0] = 99
	got, _ := cache.Get(key)
	if got[0] != 1 {
		t.Errorf("Cache stored a reference, not a copy: got %f", got[0])
	}

	// Mutating a returned vector must not affect later reads.
	got[1] = 99
	again, _ := cache.Get(key)
	if again[1] != 2 {
		t.Errorf("Cache returned a shared slice: got %f", again[1])
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(3)

	for i := range 3 {
		key := cache.Key("text", []byte(fmt.Sprintf("entry-%d", i)))
		cache.Set(key, []float32{float32(i)})
		time.Sleep(time.Millisecond) // Distinct creation times.
	}

	// A fourth entry evicts the oldest.
	cache.Set(cache.Key("text", []byte("entry-3")), []float32{3})

	if _, found := cache.Get(cache.Key("text", []byte("entry-0"))); found {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, found := cache.Get(cache.Key("text", []byte("entry-3"))); !found {
		t.Error("Expected newest entry to survive")
	}

	stats := cache.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
	if stats.Entries != 3 {
		t.Errorf("Expected 3 entries, got %d", stats.Entries)
	}
}

func TestCacheStats(t *testing.T) {
	cache := NewCache(10)

	key := cache.Key("text", []byte("winter"))
	cache.Get(key)
	cache.Set(key, []float32{1})
	cache.Get(key)
	cache.Get(key)

	stats := cache.Stats()
	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(10)
	key := cache.Key("text", []byte("winter"))
	cache.Set(key, []float32{1})

	cache.Clear()
	if _, found := cache.Get(key); found {
		t.Error("Expected miss after Clear")
	}
}
