// Package search implements semantic retrieval over indexed evidence: free
// text queries, structured filtering, and find-similar lookups keyed by
// evidence ID.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/deeds-app/evidence-go/internal/embedder"
	"github.com/deeds-app/evidence-go/internal/vector"
)

const (
	// fallbackDefaultLimit is used when no default limit is configured.
	fallbackDefaultLimit = 10
	// fallbackMaxLimit is used when no max limit is configured.
	fallbackMaxLimit = 100
	// snippetMaxChars bounds the snippet rendered for each hit.
	snippetMaxChars = 150
)

// Result is a single search hit rendered for API consumers.
type Result struct {
	// ID is the evidence UUID.
	ID string `json:"id"`
	// Score is the cosine similarity score.
	Score float32 `json:"score"`
	// CaseID is the owning case.
	CaseID string `json:"case_id"`
	// FileName is the original upload file name.
	FileName string `json:"file_name"`
	// FileKind is the broad media classification.
	FileKind string `json:"file_kind"`
	// MimeType is the evidence MIME type.
	MimeType string `json:"mime_type"`
	// Snippet is a short preview: the leading part of the AI summary, or a
	// file-name fallback when no summary exists.
	Snippet string `json:"snippet"`
	// Tags are the enrichment tags.
	Tags []string `json:"tags,omitempty"`
	// UploadedAt is the original upload time.
	UploadedAt time.Time `json:"uploaded_at"`
	// Degraded marks hits whose vector is a placeholder.
	Degraded bool `json:"degraded,omitempty"`
}

// Config holds the dependencies and tuning for a search Service.
type Config struct {
	// Index is the vector index to query.
	Index vector.Index
	// Embedder converts queries into vectors. May be nil when no backend is
	// configured; queries then use a placeholder vector and ranking is
	// meaningless, but filtered listing still works.
	Embedder embedder.Embedder
	// Dimensions is the vector size for placeholder query vectors.
	Dimensions int
	// DefaultLimit is the result count used when a query passes none.
	DefaultLimit int
	// MaxLimit is the hard cap on requested result counts.
	MaxLimit int
	// MinScore is the default similarity lower bound. Zero means none.
	MinScore float32
	// Logger is the structured logger; required.
	Logger *slog.Logger
}

// Service executes evidence searches against the vector index.
type Service struct {
	index        vector.Index
	embed        embedder.Embedder
	dims         int
	defaultLimit int
	maxLimit     int
	minScore     float32
	log          *slog.Logger
}

// New constructs a search Service.
func New(cfg Config) (*Service, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("search: vector index must not be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("search: logger must not be nil")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("search: dimensions must be positive")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = fallbackDefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = fallbackMaxLimit
	}
	return &Service{
		index:        cfg.Index,
		embed:        cfg.Embedder,
		dims:         cfg.Dimensions,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		minScore:     cfg.MinScore,
		log:          cfg.Logger,
	}, nil
}

// Search embeds the query text and returns the closest evidence, restricted
// by the filter. A non-positive limit selects the configured default; any
// limit is capped at the configured maximum. A non-positive minScore selects
// the configured default threshold.
//
// The boolean reports a degraded query: the query ran on a placeholder vector
// because no embedding backend is configured or the backend failed. Filtered
// listing still works in that mode, but similarity ranking is meaningless.
func (s *Service) Search(ctx context.Context, query string, f *vector.Filter, limit int, minScore float32) ([]Result, bool, error) {
	limit = s.clampLimit(limit)
	if minScore <= 0 {
		minScore = s.minScore
	}

	vec, degraded := s.queryVector(ctx, query)

	hits, err := s.index.Search(ctx, vec, f, limit, minScore)
	if err != nil {
		return nil, degraded, fmt.Errorf("search: %w", err)
	}
	return renderResults(hits), degraded, nil
}

// GetSimilar returns evidence most similar to the given item, excluding the
// item itself. Returns vector.ErrNotFound when the ID is not indexed.
func (s *Service) GetSimilar(ctx context.Context, id string, f *vector.Filter, limit int) ([]Result, error) {
	limit = s.clampLimit(limit)

	point, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("search: similar to %s: %w", id, err)
	}

	// Ask for one extra hit: the reference item scores highest against its
	// own vector and is dropped below.
	hits, err := s.index.Search(ctx, point.Vector, f, limit+1, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("search: similar to %s: %w", id, err)
	}

	results := make([]Result, 0, limit)
	for _, h := range hits {
		if h.ID == id {
			continue
		}
		results = append(results, renderResult(h))
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// clampLimit applies the default and maximum result count rules.
func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// queryVector embeds the query text. A missing or failing embedding backend
// degrades to a placeholder vector rather than failing the search, mirroring
// how indexing degrades; the boolean marks the degradation.
func (s *Service) queryVector(ctx context.Context, query string) ([]float32, bool) {
	if s.embed == nil {
		s.log.Debug("search: no embedding backend, using placeholder query vector")
		return make([]float32, s.dims), true
	}
	vecs, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		s.log.Warn("search: query embedding failed, using placeholder vector",
			slog.String("error", err.Error()),
		)
		return make([]float32, s.dims), true
	}
	if len(vecs) != 1 {
		s.log.Warn("search: query embedding failed, using placeholder vector",
			slog.Int("vectors", len(vecs)),
		)
		return make([]float32, s.dims), true
	}
	return vecs[0], false
}

func renderResults(hits []vector.Hit) []Result {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, renderResult(h))
	}
	return results
}

func renderResult(h vector.Hit) Result {
	return Result{
		ID:         h.ID,
		Score:      h.Score,
		CaseID:     h.Payload.CaseID,
		FileName:   h.Payload.FileName,
		FileKind:   h.Payload.FileKind,
		MimeType:   h.Payload.MimeType,
		Snippet:    snippet(h.Payload.Summary, h.Payload.FileName),
		Tags:       h.Payload.Tags,
		UploadedAt: h.Payload.UploadedAt,
		Degraded:   h.Payload.Degraded,
	}
}

// snippet renders the hit preview: the leading snippetMaxChars bytes of the
// summary truncated on a rune boundary, or "File: <name>" when no summary was
// stored.
func snippet(summary, fileName string) string {
	if summary == "" {
		return "File: " + fileName
	}
	if len(summary) <= snippetMaxChars {
		return summary
	}
	cut := snippetMaxChars
	for cut > 0 && !utf8.RuneStart(summary[cut]) {
		cut--
	}
	return summary[:cut]
}
