package embed

import (
	"context"
	"errors"
	"testing"
)

// countingProvider tracks how often the model is actually invoked.
type countingProvider struct {
	textCalls  int
	imageCalls int
	err        error
}

func (p *countingProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	p.textCalls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (p *countingProvider) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	p.imageCalls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(data)), 0, 1}, nil
}

func (p *countingProvider) Model() string            { return "counting" }
func (p *countingProvider) Dimensions() int          { return 3 }
func (p *countingProvider) Ping(context.Context) error { return nil }

func TestCachedProviderTextHitsOnce(t *testing.T) {
	inner := &countingProvider{}
	provider := WithCache(inner, 10)
	ctx := t.Context()

	first, err := provider.EmbedText(ctx, "winter")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	second, err := provider.EmbedText(ctx, "winter")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}

	if inner.textCalls != 1 {
		t.Errorf("Expected 1 model call, got %d", inner.textCalls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Cached vector differs at %d: %f != %f", i, first[i], second[i])
		}
	}

	stats := provider.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
}

func TestCachedProviderImageHitsOnce(t *testing.T) {
	inner := &countingProvider{}
	provider := WithCache(inner, 10)
	ctx := t.Context()

	data := []byte{0xFF, 0xD8, 0xFF}
	if _, err := provider.EmbedImage(ctx, data); err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if _, err := provider.EmbedImage(ctx, data); err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}

	if inner.imageCalls != 1 {
		t.Errorf("Expected 1 model call, got %d", inner.imageCalls)
	}
}

func TestCachedProviderDistinctInputs(t *testing.T) {
	inner := &countingProvider{}
	provider := WithCache(inner, 10)
	ctx := t.Context()

	provider.EmbedText(ctx, "winter")
	provider.EmbedText(ctx, "summer")

	if inner.textCalls != 2 {
		t.Errorf("Expected 2 model calls, got %d", inner.textCalls)
	}
}

func TestCachedProviderErrorsNotCached(t *testing.T) {
	inner := &countingProvider{err: ErrProviderUnavailable}
	provider := WithCache(inner, 10)
	ctx := t.Context()

	if _, err := provider.EmbedText(ctx, "winter"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("Expected ErrProviderUnavailable, got %v", err)
	}

	// Provider recovers; the failed call must not have poisoned the cache.
	inner.err = nil
	vec, err := provider.EmbedText(ctx, "winter")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Expected 3-dim vector, got %d", len(vec))
	}
	if inner.textCalls != 2 {
		t.Errorf("Expected 2 model calls, got %d", inner.textCalls)
	}
}

func TestCachedProviderEmptyInputs(t *testing.T) {
	provider := WithCache(&countingProvider{}, 10)
	ctx := t.Context()

	if _, err := provider.EmbedText(ctx, ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if _, err := provider.EmbedImage(ctx, nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}
