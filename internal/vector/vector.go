// Package vector defines the evidence vector index abstraction and its Qdrant
// implementation. The index stores one point per evidence file: the embedding
// plus a payload projection of the fields search results are rendered from.
package vector

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested point does not exist in the index.
var ErrNotFound = errors.New("vector: point not found")

// ErrDimensionMismatch is returned when a vector's length does not match the
// collection's configured dimensionality.
var ErrDimensionMismatch = errors.New("vector: embedding dimension mismatch")

// Payload is the per-point metadata projection stored alongside each vector.
// It carries everything needed to render a search hit without a relational
// round trip.
type Payload struct {
	// CaseID is the owning case.
	CaseID string
	// FileName is the original upload file name.
	FileName string
	// FileKind is the broad media classification (pdf, text, image, ...).
	FileKind string
	// MimeType is the evidence MIME type.
	MimeType string
	// FileSize is the upload size in bytes.
	FileSize int64
	// UploadedAt is the original upload time.
	UploadedAt time.Time
	// Summary is the enrichment summary.
	Summary string
	// Tags are the enrichment tags.
	Tags []string
	// Degraded marks points whose vector is a placeholder rather than a real
	// embedding.
	Degraded bool
}

// Point is a single evidence entry in the index.
type Point struct {
	// ID is the evidence UUID.
	ID string
	// Vector is the embedding (or placeholder) for the evidence content.
	Vector []float32
	// Payload is the metadata projection.
	Payload Payload
}

// Hit is a single similarity search result.
type Hit struct {
	// ID is the evidence UUID.
	ID string
	// Score is the cosine similarity score.
	Score float32
	// Payload is the stored metadata projection.
	Payload Payload
}

// Filter narrows a search to evidence matching structured criteria.
// Values within one field are OR-ed; fields are AND-ed together. A nil or
// empty filter matches everything.
type Filter struct {
	// CaseIDs restricts hits to the given cases.
	CaseIDs []string
	// Kinds restricts hits to the given file kinds.
	Kinds []string
	// Tags restricts hits to evidence carrying at least one of the given tags.
	Tags []string
}

// Empty reports whether the filter imposes no constraints.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.CaseIDs) == 0 && len(f.Kinds) == 0 && len(f.Tags) == 0)
}

// Index is the evidence vector index. Implementations must be safe for
// concurrent use.
type Index interface {
	// Upsert stores or overwrites the point for an evidence ID.
	Upsert(ctx context.Context, p *Point) error
	// Search returns up to limit hits ordered by descending similarity,
	// restricted by the filter and, when minScore > 0, by a score threshold.
	Search(ctx context.Context, vector []float32, f *Filter, limit int, minScore float32) ([]Hit, error)
	// Get returns the stored point (including its vector) for an evidence ID,
	// or ErrNotFound.
	Get(ctx context.Context, id string) (*Point, error)
	// Delete removes the point for an evidence ID. Deleting a missing point
	// is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases the underlying connection.
	Close() error
}
