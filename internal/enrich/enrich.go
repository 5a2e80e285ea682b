// Package enrich produces AI tags and summaries for evidence content.
// Two implementations exist: an LLM-backed enricher driven by an eino
// ChatModel, and a heuristic enricher using legal-domain keyword matching and
// word truncation. The heuristic enricher is the fallback when no LLM backend
// is configured, so enrichment never blocks evidence indexing.
package enrich

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
)

// ErrUnavailable indicates the enrichment backend could not produce a result.
// Callers should fall back to heuristic enrichment.
var ErrUnavailable = errors.New("enrich: backend unavailable")

// Result holds the enrichment output for one piece of evidence. Tags and
// Summary always come from the same enrichment pass — a caller never mixes
// LLM tags with a heuristic summary.
type Result struct {
	// Tags are lowercase category labels, in backend output order.
	Tags []string
	// Summary is a short prose description of the content.
	Summary string
}

// Enricher produces tags and a summary for evidence content.
// Implementations must be safe for concurrent use.
type Enricher interface {
	// Enrich analyses the given content. name is the original file name,
	// included so content-free evidence (e.g. images without OCR) still gets
	// meaningful tags.
	Enrich(ctx context.Context, name, content string) (*Result, error)
}

// Select returns the enricher to use for the given optional ChatModel.
// A nil ChatModel selects the heuristic enricher outright; otherwise the LLM
// enricher is used with the heuristic as its internal fallback.
func Select(cm model.BaseChatModel, log *slog.Logger) Enricher {
	if cm == nil {
		log.Info("enrich: no LLM backend configured, using heuristic enrichment")
		return NewHeuristic()
	}
	return NewLLM(cm, log)
}
