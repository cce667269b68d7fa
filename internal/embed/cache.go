package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is an in-memory cache for embedding vectors, keyed by a content
// hash so text and image inputs share one implementation. Oldest entries
// are evicted once maxSize is reached.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cachedEmbedding
	maxSize int

	hits      int64
	misses    int64
	evictions int64
}

type cachedEmbedding struct {
	vector    []float32
	createdAt time.Time
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Entries   int
	MaxSize   int
	Evictions int64
}

// NewCache creates a Cache holding at most maxSize entries.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		entries: make(map[string]cachedEmbedding),
		maxSize: maxSize,
	}
}

// Key derives the cache key for content, namespaced by kind ("text" or
// "image") so identical bytes in different modalities never collide.
func (c *Cache) Key(kind string, content []byte) string {
	h := sha256.Sum256(content)
	return kind + ":" + hex.EncodeToString(h[:])
}

// Get retrieves an embedding from the cache.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	// Copy so callers cannot mutate the cached vector.
	result := make([]float32, len(entry.vector))
	copy(result, entry.vector)
	return result, true
}

// Set stores an embedding in the cache, evicting the oldest entry if full.
func (c *Cache) Set(key string, vector []float32) {
	vectorCopy := make([]float32, len(vector))
	copy(vectorCopy, vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = cachedEmbedding{
		vector:    vectorCopy,
		createdAt: time.Now(),
	}
}

// evictOldest removes the entry with the oldest creation time.
// Caller must hold the write lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   len(c.entries),
		MaxSize:   c.maxSize,
		Evictions: c.evictions,
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedEmbedding)
}
