package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadAppliesYAMLValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidence.yaml")
	yamlContent := `
qdrant:
  host: qdrant.internal
  port: 6334
  collection: prosecutor_evidence
embedding:
  provider: ollama
  model: nomic-embed-text
search:
  default_limit: 10
  max_limit: 100
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	for _, k := range []string{"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "DEFAULT_SEARCH_LIMIT", "MAX_SEARCH_LIMIT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(path, discardLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded != path {
		t.Errorf("Load() path = %q, want %q", loaded, path)
	}

	checks := map[string]string{
		"QDRANT_HOST":          "qdrant.internal",
		"QDRANT_PORT":          "6334",
		"QDRANT_COLLECTION":    "prosecutor_evidence",
		"EMBEDDING_PROVIDER":   "ollama",
		"EMBEDDING_MODEL":      "nomic-embed-text",
		"DEFAULT_SEARCH_LIMIT": "10",
		"MAX_SEARCH_LIMIT":     "100",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("env %s = %q, want %q", k, got, want)
		}
	}
}

func TestLoadEnvVarWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidence.yaml")
	if err := os.WriteFile(path, []byte("qdrant:\n  host: from-yaml\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("QDRANT_HOST", "from-env")

	if _, err := Load(path, discardLogger()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "from-env" {
		t.Errorf("env QDRANT_HOST = %q, want env var to take precedence", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), discardLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded != "" {
		t.Errorf("Load() path = %q, want empty for missing file", loaded)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidence.yaml")
	if err := os.WriteFile(path, []byte("qdrant: [not a mapping"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path, discardLogger()); err == nil {
		t.Error("Load() expected error for malformed YAML, got nil")
	}
}
