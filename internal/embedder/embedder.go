// Package embedder provides implementations of the Embedder interface for
// converting evidence text into dense vector embeddings. Each implementation
// talks to a different backend (OpenAI, Azure OpenAI, Ollama) via plain HTTP —
// no additional SDK dependencies are required.
package embedder

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding backend could not be reached or
// refused the request. Callers may fall back to placeholder vectors so
// evidence indexing still completes in degraded form.
var ErrUnavailable = errors.New("embedder: backend unavailable")

// Embedder converts a batch of texts into dense vector embeddings.
// The returned slice is parallel to the input slice. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Placeholder is an Embedder that returns all-zero vectors of a fixed size.
// It stands in when no embedding backend is configured so evidence can still
// be indexed (with its payload searchable by filter, not by similarity).
type Placeholder struct {
	// dimensions is the vector size to emit.
	dimensions int
}

// NewPlaceholder constructs a Placeholder emitting vectors of the given size.
func NewPlaceholder(dimensions int) *Placeholder {
	return &Placeholder{dimensions: dimensions}
}

// Embed returns one zero vector per input text.
func (p *Placeholder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dimensions)
	}
	return out, nil
}
