package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// maxPromptChars caps how much evidence content is sent to the model per
// enrichment call. Long documents are truncated, not rejected.
const maxPromptChars = 8000

const tagsSystemPrompt = "You are a legal document analysis AI. " +
	"Generate precise, relevant tags for evidence categorization."

const summarySystemPrompt = "You are a legal document analysis AI. " +
	"Provide clear, concise summaries for prosecutor case management."

// LLM is an Enricher backed by an eino ChatModel. On any model failure it
// falls back to heuristic enrichment so indexing still completes; the fallback
// produces both tags and summary so the result stays internally consistent.
type LLM struct {
	cm       model.BaseChatModel
	fallback *Heuristic
	log      *slog.Logger
}

// NewLLM constructs an LLM enricher.
func NewLLM(cm model.BaseChatModel, log *slog.Logger) *LLM {
	return &LLM{
		cm:       cm,
		fallback: NewHeuristic(),
		log:      log,
	}
}

// Enrich asks the model for tags and a summary. If either call fails the
// whole result comes from the heuristic fallback.
func (l *LLM) Enrich(ctx context.Context, name, content string) (*Result, error) {
	text := content
	if text == "" {
		text = name
	}
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	tags, err := l.generateTags(ctx, text)
	if err == nil {
		var summary string
		summary, err = l.generateSummary(ctx, text)
		if err == nil {
			return &Result{Tags: tags, Summary: summary}, nil
		}
	}

	l.log.Warn("enrich: LLM enrichment failed, falling back to heuristics",
		slog.String("file", name),
		slog.String("error", err.Error()),
	)
	return l.fallback.Enrich(ctx, name, content)
}

// generateTags asks the model for comma-separated tags and normalises them
// to lowercase, preserving the model's output order.
func (l *LLM) generateTags(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Analyze this legal document and generate relevant tags for categorization:\n\n%s\n\nProvide only comma-separated tags:",
		text,
	)
	msg, err := l.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(tagsSystemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: tags: %v", ErrUnavailable, err)
	}

	var tags []string
	for _, raw := range strings.Split(msg.Content, ",") {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: tags: empty model response", ErrUnavailable)
	}
	return tags, nil
}

// generateSummary asks the model for a concise summary.
func (l *LLM) generateSummary(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Provide a concise summary of this legal document:\n\n%s\n\nSummary:",
		text,
	)
	msg, err := l.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("%w: summary: %v", ErrUnavailable, err)
	}
	summary := strings.TrimSpace(msg.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: summary: empty model response", ErrUnavailable)
	}
	return summary, nil
}
