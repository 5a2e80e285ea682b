package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the evidence collection name used when none is
// configured.
const DefaultCollection = "prosecutor_evidence"

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: prosecutor_evidence).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex creates a new QdrantIndex, waits for the server to report
// healthy, and ensures the evidence collection and its payload indexes exist.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: server unreachable: %w", err)
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return idx, nil
}

// healthCheckWithRetry probes the server with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// ensureCollection creates the evidence collection and its payload indexes if
// they do not already exist. Idempotent. A pre-existing collection must carry
// the configured vector size; a mismatch fails startup with
// ErrDimensionMismatch rather than letting every later upsert fail.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("qdrant: failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.cfg.Collection {
			info, err := q.client.GetCollectionInfo(ctx, q.cfg.Collection)
			if err != nil {
				return fmt.Errorf("qdrant: failed to inspect collection %q: %w", q.cfg.Collection, err)
			}
			existing := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
			return verifyCollectionDimension(q.cfg.Collection, existing, q.cfg.VectorSize)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}

	return q.createPayloadIndexes(ctx)
}

// verifyCollectionDimension checks a pre-existing collection's vector size
// against the configured one. Mixing dimensionalities in one collection is a
// fatal configuration error — typically a changed embedding backend pointed at
// an old collection. A zero on either side (unknown) is not checked.
func verifyCollectionDimension(name string, existing, configured uint64) error {
	if configured > 0 && existing > 0 && existing != configured {
		return fmt.Errorf("%w: collection %q holds %d-dimensional vectors, configured for %d",
			ErrDimensionMismatch, name, existing, configured)
	}
	return nil
}

// createPayloadIndexes indexes the filterable payload fields.
// Without these indexes, filtered search degrades badly as the collection grows.
func (q *QdrantIndex) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"case_id",   // filter evidence by case
		"file_kind", // filter by media classification
		"ai_tags",   // filter by enrichment tag
	}

	for _, field := range fields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Upsert stores or overwrites the point for an evidence ID, retrying
// transient failures with exponential backoff.
func (q *QdrantIndex) Upsert(ctx context.Context, p *Point) error {
	if q.cfg.VectorSize > 0 && uint64(len(p.Vector)) != q.cfg.VectorSize {
		return fmt.Errorf("%w: got %d dimensions, collection expects %d",
			ErrDimensionMismatch, len(p.Vector), q.cfg.VectorSize)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: qdrant.NewValueMap(payloadToMap(&p.Payload)),
	}

	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.Collection,
			Points:         []*qdrant.PointStruct{point},
		})
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx)); err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search performs a filtered cosine similarity search.
func (q *QdrantIndex) Search(ctx context.Context, vec []float32, f *Filter, limit int, minScore float32) ([]Hit, error) {
	if q.cfg.VectorSize > 0 && uint64(len(vec)) != q.cfg.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			ErrDimensionMismatch, len(vec), q.cfg.VectorSize)
	}

	query := &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qf := buildFilter(f); qf != nil {
		query.Filter = qf
	}
	if minScore > 0 {
		query.ScoreThreshold = &minScore
	}

	results, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:      r.Id.GetUuid(),
			Score:   r.Score,
			Payload: payloadFromMap(r.Payload),
		})
	}
	return hits, nil
}

// buildFilter translates a Filter into Qdrant conditions: each populated field
// contributes one must-condition matching any of its values.
func buildFilter(f *Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}

	var must []*qdrant.Condition
	if len(f.CaseIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("case_id", f.CaseIDs...))
	}
	if len(f.Kinds) > 0 {
		must = append(must, qdrant.NewMatchKeywords("file_kind", f.Kinds...))
	}
	if len(f.Tags) > 0 {
		must = append(must, qdrant.NewMatchKeywords("ai_tags", f.Tags...))
	}
	return &qdrant.Filter{Must: must}
}

// Get returns the stored point, including its vector, for an evidence ID.
func (q *QdrantIndex) Get(ctx context.Context, id string) (*Point, error) {
	results, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get failed: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	point := results[0]
	return &Point{
		ID:      point.Id.GetUuid(),
		Vector:  point.Vectors.GetVector().GetData(),
		Payload: payloadFromMap(point.Payload),
	}, nil
}

// Delete removes the point for an evidence ID.
func (q *QdrantIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Ping probes the Qdrant instance with its native HealthCheck RPC. Used by
// readiness checks; unlike NewQdrantIndex it does not retry.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// payloadToMap flattens a Payload for storage. Tags are stored as a list so
// keyword conditions can match individual elements.
func payloadToMap(p *Payload) map[string]any {
	tags := make([]any, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, t)
	}
	return map[string]any{
		"case_id":     p.CaseID,
		"file_name":   p.FileName,
		"file_kind":   p.FileKind,
		"mime_type":   p.MimeType,
		"file_size":   p.FileSize,
		"uploaded_at": p.UploadedAt.UTC().Format(time.RFC3339),
		"ai_summary":  p.Summary,
		"ai_tags":     tags,
		"degraded":    p.Degraded,
	}
}

// payloadFromMap rebuilds a Payload from stored Qdrant values. Missing or
// malformed fields yield zero values rather than errors.
func payloadFromMap(m map[string]*qdrant.Value) Payload {
	var p Payload
	if m == nil {
		return p
	}
	p.CaseID = m["case_id"].GetStringValue()
	p.FileName = m["file_name"].GetStringValue()
	p.FileKind = m["file_kind"].GetStringValue()
	p.MimeType = m["mime_type"].GetStringValue()
	p.FileSize = m["file_size"].GetIntegerValue()
	p.Summary = m["ai_summary"].GetStringValue()
	p.Degraded = m["degraded"].GetBoolValue()
	if ts := m["uploaded_at"].GetStringValue(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			p.UploadedAt = t
		}
	}
	if list := m["ai_tags"].GetListValue(); list != nil {
		for _, v := range list.Values {
			if s := v.GetStringValue(); s != "" {
				p.Tags = append(p.Tags, s)
			}
		}
	}
	return p
}
