package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deeds-app/evidence-go/internal/embedder"
	"github.com/deeds-app/evidence-go/internal/enrich"
	"github.com/deeds-app/evidence-go/internal/pipeline"
	"github.com/deeds-app/evidence-go/internal/processor"
	"github.com/deeds-app/evidence-go/internal/provider"
	"github.com/deeds-app/evidence-go/internal/search"
	"github.com/deeds-app/evidence-go/internal/store"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// components bundles the wired evidence subsystems shared by the CLI commands.
type components struct {
	store    *store.SQLiteStore
	index    *vector.QdrantIndex
	embedder embedder.Embedder
	proc     *processor.Processor
	indexer  *pipeline.Indexer
	search   *search.Service
	registry *prometheus.Registry
}

// buildComponents wires the store, vector index, embedder, enricher,
// pipeline, and search service from the environment. The returned cleanup
// function must be called before process exit.
func buildComponents(ctx context.Context, log *slog.Logger) (*components, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, fmt.Errorf("embedder configuration: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	dims := embedder.DefaultDimensions(getEnvOrDefault("EMBEDDING_PROVIDER", ""))

	dbPath := os.Getenv("EVIDENCE_DB")
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve evidence DB path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open evidence store at %s: %w", dbPath, err)
	}
	log.Info("evidence store opened", slog.String("path", dbPath))

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	idx, err := vector.NewQdrantIndex(ctx, &vector.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", vector.DefaultCollection),
		VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to initialise enrichment provider: %w", err)
	}
	enricher := enrich.Select(chatModel, log)

	proc := processor.New(processor.Config{
		MaxFileSize:          getEnvInt64("MAX_FILE_SIZE", 50<<20),
		EnableTextExtraction: getEnvBool("ENABLE_TEXT_EXTRACTION", true),
		EnableOCR:            getEnvBool("ENABLE_OCR", false),
	}, log)

	registry := prometheus.NewRegistry()

	indexer, err := pipeline.New(pipeline.Config{
		Store:      st,
		Index:      idx,
		Embedder:   emb,
		Enricher:   enricher,
		Processor:  proc,
		Dimensions: dims,
		Registry:   registry,
		Logger:     log,
	})
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to build indexing pipeline: %w", err)
	}

	searcher, err := search.New(search.Config{
		Index:        idx,
		Embedder:     emb,
		Dimensions:   dims,
		DefaultLimit: getEnvInt("DEFAULT_SEARCH_LIMIT", 10),
		MaxLimit:     getEnvInt("MAX_SEARCH_LIMIT", 100),
		MinScore:     getEnvFloat32("MIN_SEARCH_SCORE", 0),
		Logger:       log,
	})
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to build search service: %w", err)
	}

	cleanup := func() {
		_ = idx.Close()
		_ = st.Close()
	}

	return &components{
		store:    st,
		index:    idx,
		embedder: emb,
		proc:     proc,
		indexer:  indexer,
		search:   searcher,
		registry: registry,
	}, cleanup, nil
}

// getEnvOrDefault returns the environment variable's value or fallback when
// unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses an integer environment variable, returning fallback when
// unset or malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvInt64 parses a 64-bit integer environment variable, returning
// fallback when unset or malformed.
func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat32 parses a float environment variable, returning fallback when
// unset or malformed.
func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

// getEnvBool parses a boolean environment variable, returning fallback when
// unset or malformed.
func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
