package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlaceholderEmbed(t *testing.T) {
	t.Parallel()

	p := NewPlaceholder(384)
	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 384 {
			t.Errorf("vector %d has %d dimensions, want 384", i, len(v))
		}
		for _, x := range v {
			if x != 0 {
				t.Fatalf("vector %d is not all-zero", i)
			}
		}
	}
}

func TestOllamaEmbed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	vecs, err := e.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Errorf("Embed() = %v, want 2 vectors of 3 dims", vecs)
	}
}

func TestOllamaEmbedBackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	_, err := e.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable", err)
	}
}

func TestOllamaEmbedUnreachable(t *testing.T) {
	t.Parallel()

	e := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "nomic-embed-text"})
	_, err := e.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable", err)
	}
}

func TestOpenAIEmbedOrdering(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		// Return the data out of order to exercise index-based reassembly.
		_, _ = w.Write([]byte(`{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "text-embedding-3-small"})
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("Embed() order = %v, want index-sorted", vecs)
	}
}

func TestNewFromEnvUnset(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")

	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error: %v", err)
	}
	if e != nil {
		t.Errorf("NewFromEnv() = %T, want nil when no backend configured", e)
	}
}

func TestNewFromEnvUnknown(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "mystery")

	if _, err := NewFromEnv(); err == nil {
		t.Error("NewFromEnv() expected error for unknown backend")
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	tests := []struct {
		backend string
		want    int
	}{
		{"ollama", 768},
		{"openai", 1536},
		{"azure", 1536},
		{"", 384},
	}
	for _, tt := range tests {
		if got := DefaultDimensions(tt.backend); got != tt.want {
			t.Errorf("DefaultDimensions(%q) = %d, want %d", tt.backend, got, tt.want)
		}
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "512")
	if got := DefaultDimensions("ollama"); got != 512 {
		t.Errorf("DefaultDimensions with env override = %d, want 512", got)
	}
}
