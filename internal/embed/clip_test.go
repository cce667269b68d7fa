package embed

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestSidecar(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ClipProvider) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewClipProvider(ClipConfig{
		URL:           server.URL,
		Model:         "clip-test",
		Dimensions:    4,
		Timeout:       2 * time.Second,
		MaxRetries:    2,
		RetryInterval: 10 * time.Millisecond,
	})
	return server, provider
}

func embeddingResponse(w http.ResponseWriter, values []float64) {
	json.NewEncoder(w).Encode(map[string]any{"embedding": values})
}

func TestClipEmbedText(t *testing.T) {
	var gotModel, gotText string
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
			Text  string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel, gotText = req.Model, req.Text
		embeddingResponse(w, []float64{0.1, 0.2, 0.3, 0.4})
	})

	vec, err := provider.EmbedText(t.Context(), "a dog in the snow")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("Expected 4 dimensions, got %d", len(vec))
	}
	if gotModel != "clip-test" || gotText != "a dog in the snow" {
		t.Errorf("Unexpected request: model=%q text=%q", gotModel, gotText)
	}
}

func TestClipEmbedImage(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var gotImage string
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/image" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Image string `json:"image"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotImage = req.Image
		embeddingResponse(w, []float64{1, 0, 0, 0})
	})

	if _, err := provider.EmbedImage(t.Context(), data); err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(gotImage)
	if err != nil {
		t.Fatalf("Image was not valid base64: %v", err)
	}
	if string(decoded) != string(data) {
		t.Error("Image bytes did not round-trip")
	}
}

func TestClipEmptyInputs(t *testing.T) {
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Sidecar should not be called for empty input")
	})

	if _, err := provider.EmbedText(t.Context(), ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if _, err := provider.EmbedImage(t.Context(), nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}

func TestClipModelNotFound(t *testing.T) {
	calls := 0
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := provider.EmbedText(t.Context(), "x")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("404 must not be retried, got %d calls", calls)
	}
}

func TestClipRetriesServerErrors(t *testing.T) {
	calls := 0
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		embeddingResponse(w, []float64{1, 0, 0, 0})
	})

	if _, err := provider.EmbedText(t.Context(), "x"); err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestClipUnavailableAfterRetries(t *testing.T) {
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := provider.EmbedText(t.Context(), "x")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestClipDimensionMismatch(t *testing.T) {
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		embeddingResponse(w, []float64{1, 2}) // Too short.
	})

	_, err := provider.EmbedText(t.Context(), "x")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestClipPing(t *testing.T) {
	_, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := provider.Ping(t.Context()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestClipPingUnavailable(t *testing.T) {
	server, provider := newTestSidecar(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	if err := provider.Ping(t.Context()); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
