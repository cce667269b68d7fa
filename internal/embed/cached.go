package embed

import (
	"context"
)

// CachedProvider wraps an embedding provider with a content-hash cache.
// The model is the expensive collaborator here, so repeated embeddings of
// the same tag name, prompt, or image bytes never hit it twice.
type CachedProvider struct {
	inner Provider
	cache *Cache
}

// WithCache wraps a Provider with a Cache of at most cacheSize entries.
func WithCache(p Provider, cacheSize int) *CachedProvider {
	return &CachedProvider{
		inner: p,
		cache: NewCache(cacheSize),
	}
}

// EmbedText generates a text embedding, using the cache if possible.
func (c *CachedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := c.cache.Key("text", []byte(text))
	if cached, found := c.cache.Get(key); found {
		return cached, nil
	}

	embedding, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, embedding)
	return embedding, nil
}

// EmbedImage generates an image embedding, using the cache if possible.
func (c *CachedProvider) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	key := c.cache.Key("image", data)
	if cached, found := c.cache.Get(key); found {
		return cached, nil
	}

	embedding, err := c.inner.EmbedImage(ctx, data)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, embedding)
	return embedding, nil
}

// Model returns the inner provider's model name.
func (c *CachedProvider) Model() string {
	return c.inner.Model()
}

// Dimensions returns the inner provider's dimensionality.
func (c *CachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// Ping checks the inner provider.
func (c *CachedProvider) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// CacheStats returns statistics from the underlying cache.
func (c *CachedProvider) CacheStats() CacheStats {
	return c.cache.Stats()
}
