package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultClipURL       = "http://localhost:8060"
	defaultClipModel     = "clip-ViT-B-32"
	defaultClipDims      = 512
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// ClipConfig holds configuration for the CLIP sidecar provider.
type ClipConfig struct {
	URL           string
	Model         string
	Dimensions    int
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultClipConfig returns a default configuration for the CLIP sidecar.
func DefaultClipConfig() ClipConfig {
	return ClipConfig{
		URL:           defaultClipURL,
		Model:         defaultClipModel,
		Dimensions:    defaultClipDims,
		Timeout:       defaultTimeout,
		MaxRetries:    defaultMaxRetries,
		RetryInterval: defaultRetryInterval,
	}
}

// ClipProvider implements Provider against a CLIP embedding sidecar that
// serves text and image embeddings from the same model over HTTP.
type ClipProvider struct {
	config ClipConfig
	client *http.Client
}

// clipTextRequest is the request body for the sidecar's text endpoint.
type clipTextRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// clipImageRequest is the request body for the sidecar's image endpoint.
// Image bytes travel base64-encoded.
type clipImageRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

// clipEmbeddingResponse is the sidecar's embedding response.
type clipEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// clipErrorResponse represents an error response from the sidecar.
type clipErrorResponse struct {
	Error string `json:"error"`
}

// NewClipProvider creates a new CLIP sidecar provider.
func NewClipProvider(cfg ClipConfig) *ClipProvider {
	if cfg.URL == "" {
		cfg.URL = defaultClipURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultClipModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultClipDims
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &ClipProvider{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// EmbedText generates an embedding for a single text.
func (p *ClipProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return p.embed(ctx, "/embed/text", clipTextRequest{
		Model: p.config.Model,
		Text:  text,
	})
}

// EmbedImage generates an embedding for raw image bytes.
func (p *ClipProvider) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return p.embed(ctx, "/embed/image", clipImageRequest{
		Model: p.config.Model,
		Image: base64.StdEncoding.EncodeToString(data),
	})
}

// embed posts the request with retries and decodes the embedding.
func (p *ClipProvider) embed(ctx context.Context, path string, reqBody any) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ErrContextCanceled
			case <-time.After(p.config.RetryInterval):
			}
		}

		embedding, retryable, err := p.embedOnce(ctx, path, reqBody)
		if err == nil {
			return embedding, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

func (p *ClipProvider) embedOnce(ctx context.Context, path string, reqBody any) ([]float32, bool, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.URL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ErrContextCanceled
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, ErrModelNotFound
	case http.StatusTooManyRequests:
		return nil, true, ErrRateLimited
	default:
		var errResp clipErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, resp.StatusCode >= 500, fmt.Errorf("clip sidecar error: %s", errResp.Error)
		}
		return nil, resp.StatusCode >= 500, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var embResp clipEmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, false, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, false, fmt.Errorf("empty embedding returned")
	}

	embedding := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		embedding[i] = float32(v)
	}

	if len(embedding) != p.config.Dimensions {
		return nil, false, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, p.config.Dimensions, len(embedding))
	}

	return embedding, false, nil
}

// Model returns the model name.
func (p *ClipProvider) Model() string {
	return p.config.Model
}

// Dimensions returns the embedding dimensionality.
func (p *ClipProvider) Dimensions() int {
	return p.config.Dimensions
}

// Ping checks that the sidecar is reachable and has the model loaded.
func (p *ClipProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.config.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}
