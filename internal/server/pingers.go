package server

import (
	"context"
	"fmt"

	"github.com/deeds-app/evidence-go/internal/embedder"
)

// pingable is any dependency client exposing a Ping probe.
// *vector.QdrantIndex and *store.SQLiteStore satisfy it.
type pingable interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts a pingable dependency client to the Pinger
// interface used by GET /api/ready.
type DependencyPinger struct {
	// name identifies the dependency in readiness responses (e.g. "qdrant").
	name string
	// dep is the dependency client to probe.
	dep pingable
}

// NewQdrantPinger constructs a readiness probe for the vector index.
func NewQdrantPinger(dep pingable) *DependencyPinger {
	return &DependencyPinger{name: "qdrant", dep: dep}
}

// NewStorePinger constructs a readiness probe for the relational store.
func NewStorePinger(dep pingable) *DependencyPinger {
	return &DependencyPinger{name: "sqlite", dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping probes the dependency. Returns nil if it is reachable, or a
// descriptive error otherwise.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// text. It satisfies the Pinger interface and is used by GET /api/ready.
// Not registered in degraded mode (no backend configured).
type EmbedderPinger struct {
	// emb is the embedding backend to probe.
	emb embedder.Embedder
}

// NewEmbedderPinger constructs a readiness probe for the embedding backend.
func NewEmbedderPinger(emb embedder.Embedder) *EmbedderPinger {
	return &EmbedderPinger{emb: emb}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping sends a minimal embed request to the backend.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if _, err := p.emb.Embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embed probe failed: %w", err)
	}
	return nil
}
