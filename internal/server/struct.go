package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deeds-app/evidence-go/internal/pipeline"
	"github.com/deeds-app/evidence-go/internal/processor"
	"github.com/deeds-app/evidence-go/internal/search"
	"github.com/deeds-app/evidence-go/internal/store"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// UploadDir is the directory uploaded evidence files are saved to.
	// Defaults to ~/.evidence/uploads.
	UploadDir string
	// MaxUploadBytes bounds the multipart form size accepted on upload.
	// Defaults to 50 MiB.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's own metric registrations.
	// If nil, a fresh registry is created.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. If nil, /metrics is not served.
	MetricsGatherer prometheus.Gatherer
}

// indexer is the interface the evidence handlers call to index and deindex
// evidence. *pipeline.Indexer satisfies it; tests inject a fake.
type indexer interface {
	Index(ctx context.Context, rec *store.Record, content string) (*pipeline.Outcome, error)
	Deindex(ctx context.Context, id string) error
	Reconcile(ctx context.Context) (int, error)
}

// searcher is the interface the search handlers call. *search.Service
// satisfies it; tests inject a fake.
type searcher interface {
	Search(ctx context.Context, query string, f *vector.Filter, limit int, minScore float32) ([]search.Result, bool, error)
	GetSimilar(ctx context.Context, id string, f *vector.Filter, limit int) ([]search.Result, error)
}

// fileProcessor is the interface the upload handler calls to classify a saved
// file and extract its text. *processor.Processor satisfies it.
type fileProcessor interface {
	Process(ctx context.Context, path, fileName string) (*processor.Processed, error)
}

// Server is the HTTP server that exposes the evidence API.
type Server struct {
	// store is the relational system of record for evidence metadata.
	store store.EvidenceStore
	// indexer runs the enrich/embed/upsert pipeline for uploaded evidence.
	indexer indexer
	// searcher answers semantic search and similarity queries.
	searcher searcher
	// proc classifies uploads and extracts their text content.
	proc fileProcessor
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// evidenceResponse is the JSON representation of an evidence record returned
// by the upload, get, and list endpoints.
type evidenceResponse struct {
	// ID is the evidence UUID.
	ID string `json:"id"`
	// CaseID is the owning case.
	CaseID string `json:"case_id"`
	// FileName is the original upload file name.
	FileName string `json:"file_name"`
	// FileKind is the broad media classification.
	FileKind string `json:"file_kind"`
	// MimeType is the detected MIME type.
	MimeType string `json:"mime_type"`
	// FileSize is the upload size in bytes.
	FileSize int64 `json:"file_size"`
	// UploadedAt is when the evidence was first persisted.
	UploadedAt time.Time `json:"uploaded_at"`
	// Width and Height are pixel dimensions for images, omitted when unknown.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// DurationSeconds is the media length for audio/video, omitted when unknown.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	// PageCount is the document page count, omitted when unknown.
	PageCount int `json:"page_count,omitempty"`
	// Summary is the enrichment summary, empty until indexed.
	Summary string `json:"summary,omitempty"`
	// Tags are the enrichment tags.
	Tags []string `json:"tags,omitempty"`
	// Indexed reports whether the evidence is searchable.
	Indexed bool `json:"indexed"`
	// Degraded marks evidence indexed with a placeholder vector.
	Degraded bool `json:"degraded,omitempty"`
}

// listEvidenceResponse is the JSON body for GET /api/evidence?case_id=<id>.
type listEvidenceResponse struct {
	// CaseID is the case that was listed.
	CaseID string `json:"case_id"`
	// Evidence is the case's evidence, newest upload first.
	Evidence []evidenceResponse `json:"evidence"`
}

// searchResponse is the JSON body for GET /api/search and the similar endpoint.
type searchResponse struct {
	// Query is the query string that was searched, empty for similarity lookups.
	Query string `json:"query,omitempty"`
	// DegradedQuery is true when the query was embedded with a placeholder
	// vector because no embedding backend is configured.
	DegradedQuery bool `json:"degraded_query,omitempty"`
	// Results is the ranked hit list.
	Results []search.Result `json:"results"`
}

// reconcileResponse is the JSON body for POST /api/reconcile.
type reconcileResponse struct {
	// Repaired is the number of records brought back in sync with the index.
	Repaired int `json:"repaired"`
}
