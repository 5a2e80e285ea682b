// Package pipeline implements the evidence indexing pipeline: it enriches
// processed evidence content, embeds it, upserts the result into the vector
// index, and reconciles the relational record.
//
// The vector upsert is the only hard failure — enrichment and embedding
// degrade gracefully, and a failed relational update is repaired later by a
// reconcile sweep. Indexing runs for the same evidence ID are serialised so a
// re-upload cannot interleave with an in-flight run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deeds-app/evidence-go/internal/embedder"
	"github.com/deeds-app/evidence-go/internal/enrich"
	"github.com/deeds-app/evidence-go/internal/processor"
	"github.com/deeds-app/evidence-go/internal/store"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// ErrIndexingFailed indicates the vector upsert failed and the evidence is
// not searchable. This is the pipeline's only hard failure.
var ErrIndexingFailed = errors.New("pipeline: vector indexing failed")

// Outcome reports what an indexing run produced.
type Outcome struct {
	// Tags and Summary are the enrichment output written to the index.
	Tags    []string
	Summary string
	// Degraded is true when the vector is a placeholder because no embedding
	// backend was available (or the configured one failed).
	Degraded bool
	// Reconciled is false when the vector upsert succeeded but the relational
	// update did not; a reconcile sweep will repair the record.
	Reconciled bool
}

// Config holds the dependencies required to construct an Indexer.
type Config struct {
	// Store is the relational evidence store.
	Store store.EvidenceStore
	// Index is the vector index.
	Index vector.Index
	// Embedder converts evidence text into vectors. May be nil when no
	// backend is configured; indexing then uses placeholder vectors and
	// marks every run degraded.
	Embedder embedder.Embedder
	// Enricher produces tags and summaries.
	Enricher enrich.Enricher
	// Processor re-extracts content during reconcile sweeps.
	Processor *processor.Processor
	// Dimensions is the vector size for placeholder embeddings.
	Dimensions int
	// Registry receives the pipeline's Prometheus metrics.
	Registry prometheus.Registerer
	// Logger is the structured logger; required.
	Logger *slog.Logger
}

// Indexer runs the enrich → embed → upsert → reconcile flow for evidence.
type Indexer struct {
	store    store.EvidenceStore
	index    vector.Index
	embed    embedder.Embedder
	enricher enrich.Enricher
	proc     *processor.Processor
	dims     int
	metrics  *pipelineMetrics
	log      *slog.Logger

	// locks serialises indexing per evidence ID.
	locks *keyedMutex
}

// New constructs an Indexer from the provided dependencies.
func New(cfg Config) (*Indexer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: store must not be nil")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("pipeline: vector index must not be nil")
	}
	if cfg.Enricher == nil {
		return nil, fmt.Errorf("pipeline: enricher must not be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("pipeline: logger must not be nil")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pipeline: dimensions must be positive")
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Indexer{
		store:    cfg.Store,
		index:    cfg.Index,
		embed:    cfg.Embedder,
		enricher: cfg.Enricher,
		proc:     cfg.Processor,
		dims:     cfg.Dimensions,
		metrics:  newPipelineMetrics(reg),
		log:      cfg.Logger,
		locks:    newKeyedMutex(),
	}, nil
}

// Index runs the full indexing flow for one evidence record. content is the
// extracted text, possibly empty. The run is serialised per evidence ID and
// survives cancellation of the caller's context: once indexing starts, a
// dropped upload connection must not leave a half-indexed file.
func (ix *Indexer) Index(ctx context.Context, rec *store.Record, content string) (*Outcome, error) {
	unlock := ix.locks.lock(rec.ID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	// Enrichment never blocks indexing: any failure falls back to heuristics.
	res, err := ix.enricher.Enrich(ctx, rec.FileName, content)
	if err != nil {
		ix.log.Warn("pipeline: enrichment failed, using heuristics",
			slog.String("evidence_id", rec.ID),
			slog.String("error", err.Error()),
		)
		res, _ = enrich.NewHeuristic().Enrich(ctx, rec.FileName, content)
	}

	vec, degraded := ix.embedContent(ctx, rec, content, res.Summary)

	point := &vector.Point{
		ID:     rec.ID,
		Vector: vec,
		Payload: vector.Payload{
			CaseID:     rec.CaseID,
			FileName:   rec.FileName,
			FileKind:   string(rec.Kind),
			MimeType:   rec.MimeType,
			FileSize:   rec.FileSize,
			UploadedAt: rec.UploadedAt,
			Summary:    res.Summary,
			Tags:       res.Tags,
			Degraded:   degraded,
		},
	}
	if err := ix.index.Upsert(ctx, point); err != nil {
		ix.metrics.indexedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}

	out := &Outcome{
		Tags:       res.Tags,
		Summary:    res.Summary,
		Degraded:   degraded,
		Reconciled: true,
	}

	// The vector write is the source of truth for searchability. A failed
	// relational update leaves the record unmarked and the reconcile sweep
	// repairs it, so the run still counts as a success.
	if err := ix.store.UpdateAIFields(ctx, rec.ID, res.Summary, res.Tags, degraded); err != nil {
		ix.log.Error("pipeline: relational update failed, record awaits reconciliation",
			slog.String("evidence_id", rec.ID),
			slog.String("error", err.Error()),
		)
		ix.metrics.reconcileLagTotal.Inc()
		out.Reconciled = false
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	ix.metrics.indexedTotal.WithLabelValues(outcome).Inc()
	ix.metrics.indexDurationSeconds.Observe(time.Since(start).Seconds())

	ix.log.Info("pipeline: evidence indexed",
		slog.String("evidence_id", rec.ID),
		slog.String("case_id", rec.CaseID),
		slog.Bool("degraded", degraded),
		slog.Int("tags", len(res.Tags)),
	)
	return out, nil
}

// embedContent produces the vector for an evidence record, substituting a
// zero placeholder when the embedding backend fails or none is configured.
func (ix *Indexer) embedContent(ctx context.Context, rec *store.Record, content, summary string) ([]float32, bool) {
	if ix.embed != nil {
		text := embedInput(rec.FileName, content, summary)
		vecs, err := ix.embed.Embed(ctx, []string{text})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			return vecs[0], false
		}
		if err != nil {
			ix.log.Warn("pipeline: embedding failed, indexing with placeholder vector",
				slog.String("evidence_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return make([]float32, ix.dims), true
}

// embedInput composes the text sent to the embedding backend. File name is
// always included so content-free evidence still lands near related items.
func embedInput(fileName, content, summary string) string {
	parts := []string{fileName}
	if summary != "" {
		parts = append(parts, summary)
	}
	if content != "" {
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n")
}

// Deindex removes evidence from both stores. The relational delete is
// authoritative; a failed vector delete is logged and left for manual or
// scripted cleanup rather than resurrecting the record.
func (ix *Indexer) Deindex(ctx context.Context, id string) error {
	unlock := ix.locks.lock(id)
	defer unlock()

	if err := ix.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("pipeline: deindex: %w", err)
	}

	if err := ix.index.Delete(ctx, id); err != nil {
		ix.log.Warn("pipeline: vector delete failed, point orphaned",
			slog.String("evidence_id", id),
			slog.String("error", err.Error()),
		)
		ix.metrics.deindexedTotal.WithLabelValues("vector_orphaned").Inc()
		return nil
	}

	ix.metrics.deindexedTotal.WithLabelValues("ok").Inc()
	return nil
}

// Reconcile re-indexes every record whose relational row says it has not been
// indexed, re-extracting content from the stored file when possible. Returns
// the number of records repaired; individual failures are logged and skipped.
func (ix *Indexer) Reconcile(ctx context.Context) (int, error) {
	recs, err := ix.store.ListUnindexed(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: reconcile: %w", err)
	}

	repaired := 0
	for i := range recs {
		rec := &recs[i]
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}

		content := ""
		if ix.proc != nil {
			if processed, err := ix.proc.Process(ctx, rec.FilePath, rec.FileName); err == nil {
				content = processed.Text
			} else {
				ix.log.Warn("pipeline: reconcile could not re-extract content",
					slog.String("evidence_id", rec.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if _, err := ix.Index(ctx, rec, content); err != nil {
			ix.log.Error("pipeline: reconcile failed for record",
				slog.String("evidence_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		repaired++
	}

	ix.log.Info("pipeline: reconcile sweep complete",
		slog.Int("pending", len(recs)),
		slog.Int("repaired", repaired),
	)
	return repaired, nil
}
