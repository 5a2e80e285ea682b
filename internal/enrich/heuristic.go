package enrich

import (
	"context"
	"strings"
)

// legalKeywords are the tag candidates for heuristic enrichment. A keyword
// becomes a tag when it appears anywhere in the lowercased content.
var legalKeywords = []string{
	"evidence", "witness", "statement", "testimony", "document",
	"case", "criminal", "civil", "court", "trial", "hearing",
	"investigation", "police", "detective", "forensic", "dna",
	"fingerprint", "weapon", "drug", "theft", "assault", "murder",
}

// summaryWordLimit is the number of leading words kept in a heuristic summary.
const summaryWordLimit = 50

// Heuristic is an Enricher that needs no model: tags come from legal-domain
// keyword matching and the summary is a word-bounded truncation of the content.
type Heuristic struct{}

// NewHeuristic constructs a Heuristic enricher.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Enrich produces keyword tags and a truncation summary. It never fails.
func (h *Heuristic) Enrich(_ context.Context, name, content string) (*Result, error) {
	text := content
	if text == "" {
		text = name
	}
	return &Result{
		Tags:    keywordTags(name + " " + content),
		Summary: truncationSummary(text),
	}, nil
}

// keywordTags returns each legal keyword present in the content, in list
// order so output is deterministic.
func keywordTags(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, kw := range legalKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}

// truncationSummary returns the first summaryWordLimit words of the content
// followed by an ellipsis, or the content unchanged when it is short enough.
func truncationSummary(content string) string {
	words := strings.Fields(content)
	if len(words) <= summaryWordLimit {
		return content
	}
	return strings.Join(words[:summaryWordLimit], " ") + "..."
}
