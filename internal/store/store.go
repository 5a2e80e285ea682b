// Package store provides a SQLite-backed relational store for evidence
// records. The relational row is the system of record for an evidence file's
// metadata; the vector index holds the searchable projection. Records are
// persisted across restarts and reconciled against the vector index on demand.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a requested evidence record does not exist.
var ErrNotFound = errors.New("store: evidence record not found")

// Kind classifies an evidence file by its broad media type.
type Kind string

const (
	// KindPDF is a PDF document.
	KindPDF Kind = "pdf"
	// KindText is a plain-text document (txt, md, log).
	KindText Kind = "text"
	// KindWord is a word-processor document (doc, docx, rtf).
	KindWord Kind = "word"
	// KindImage is a still image.
	KindImage Kind = "image"
	// KindVideo is a video recording.
	KindVideo Kind = "video"
	// KindAudio is an audio recording.
	KindAudio Kind = "audio"
	// KindUnknown is any file whose extension is not recognised.
	KindUnknown Kind = "unknown"
)

// Record is a single evidence file's relational row.
type Record struct {
	// ID is the evidence UUID, shared with the vector index point ID.
	ID string
	// CaseID is the case this evidence belongs to.
	CaseID string
	// FileName is the original upload file name.
	FileName string
	// FilePath is where the uploaded bytes live on disk.
	FilePath string
	// Kind is the broad media classification derived from the extension.
	Kind Kind
	// MimeType is the detected or client-supplied MIME type.
	MimeType string
	// FileSize is the upload size in bytes.
	FileSize int64
	// UploadedAt is when the evidence was first persisted.
	UploadedAt time.Time

	// Width and Height are pixel dimensions for image evidence, 0 when unknown.
	Width  int
	Height int
	// DurationSeconds is the media length for audio/video, 0 when unknown.
	DurationSeconds float64
	// PageCount is the page count for document evidence, 0 when unknown.
	PageCount int

	// AISummary is the enrichment summary, empty until indexed.
	AISummary string
	// AITags are the enrichment tags, nil until indexed.
	AITags []string
	// Indexed reports whether the evidence has been written to the vector index.
	Indexed bool
	// IndexedAt is when indexing last succeeded; zero until indexed.
	IndexedAt time.Time
	// Degraded reports whether the indexed vector is a placeholder
	// (no embedding backend was available at indexing time).
	Degraded bool
}

// EvidenceStore persists and retrieves evidence records. Implementations must
// be safe for concurrent use.
type EvidenceStore interface {
	// Create persists a new evidence record. The record's ID must be set.
	Create(ctx context.Context, rec *Record) error
	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// ListByCase returns records for a case, newest upload first. A
	// non-positive limit returns all records; offset skips leading rows.
	ListByCase(ctx context.Context, caseID string, limit, offset int) ([]Record, error)
	// ListUnindexed returns records not yet reflected in the vector index,
	// oldest upload first, for reconciliation sweeps.
	ListUnindexed(ctx context.Context) ([]Record, error)
	// UpdateAIFields records the outcome of an indexing run: summary, tags,
	// indexed flag, and whether the vector was a degraded placeholder.
	// Returns ErrNotFound if no record with the given ID exists.
	UpdateAIFields(ctx context.Context, id, summary string, tags []string, degraded bool) error
	// Delete removes the record with the given ID. Returns ErrNotFound if it
	// does not exist.
	Delete(ctx context.Context, id string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an EvidenceStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ EvidenceStore = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the evidence database.
// It resolves to ~/.evidence/evidence.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".evidence")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "evidence.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS evidence (
    id               TEXT    PRIMARY KEY,
    case_id          TEXT    NOT NULL,
    file_name        TEXT    NOT NULL,
    file_path        TEXT    NOT NULL,
    kind             TEXT    NOT NULL,
    mime_type        TEXT    NOT NULL,
    file_size        INTEGER NOT NULL,
    uploaded_at      INTEGER NOT NULL,  -- Unix timestamp (seconds)
    width            INTEGER NOT NULL DEFAULT 0,
    height           INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL    NOT NULL DEFAULT 0,
    page_count       INTEGER NOT NULL DEFAULT 0,
    ai_summary       TEXT    NOT NULL DEFAULT '',
    ai_tags          TEXT    NOT NULL DEFAULT '[]',  -- JSON array of strings
    indexed          INTEGER NOT NULL DEFAULT 0,
    indexed_at       INTEGER NOT NULL DEFAULT 0,
    degraded         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_evidence_case_uploaded
    ON evidence (case_id, uploaded_at);
CREATE INDEX IF NOT EXISTS idx_evidence_indexed
    ON evidence (indexed);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Create persists a new evidence record.
func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	tags, err := json.Marshal(tagsOrEmpty(rec.AITags))
	if err != nil {
		return fmt.Errorf("store: create: marshal tags: %w", err)
	}
	const q = `
INSERT INTO evidence (id, case_id, file_name, file_path, kind, mime_type,
                      file_size, uploaded_at, width, height, duration_seconds,
                      page_count, ai_summary, ai_tags, indexed, indexed_at, degraded)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		rec.ID, rec.CaseID, rec.FileName, rec.FilePath, string(rec.Kind),
		rec.MimeType, rec.FileSize, rec.UploadedAt.Unix(), rec.Width, rec.Height,
		rec.DurationSeconds, rec.PageCount, rec.AISummary, string(tags),
		boolInt(rec.Indexed), unixOrZero(rec.IndexedAt), boolInt(rec.Degraded),
	)
	if err != nil {
		return fmt.Errorf("store: create: %w", err)
	}
	return nil
}

// recordColumns is the SELECT column list matching scanRecord's order.
const recordColumns = `id, case_id, file_name, file_path, kind, mime_type,
       file_size, uploaded_at, width, height, duration_seconds, page_count,
       ai_summary, ai_tags, indexed, indexed_at, degraded`

// Get returns the record with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	q := `SELECT ` + recordColumns + ` FROM evidence WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return rec, nil
}

// ListByCase returns records for a case, newest upload first. A non-positive
// limit returns all records; offset skips past the first rows of the result.
func (s *SQLiteStore) ListByCase(ctx context.Context, caseID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + recordColumns + ` FROM evidence WHERE case_id = ? ORDER BY uploaded_at DESC, id LIMIT ? OFFSET ?`
	return s.queryRecords(ctx, q, caseID, limit, offset)
}

// ListUnindexed returns records awaiting vector indexing, oldest first.
func (s *SQLiteStore) ListUnindexed(ctx context.Context) ([]Record, error) {
	q := `SELECT ` + recordColumns + ` FROM evidence WHERE indexed = 0 ORDER BY uploaded_at ASC, id`
	return s.queryRecords(ctx, q)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return recs, nil
}

// UpdateAIFields records the outcome of an indexing run.
func (s *SQLiteStore) UpdateAIFields(ctx context.Context, id, summary string, tags []string, degraded bool) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(tags))
	if err != nil {
		return fmt.Errorf("store: update ai fields: marshal tags: %w", err)
	}
	const q = `
UPDATE evidence
SET    ai_summary = ?, ai_tags = ?, indexed = 1, indexed_at = ?, degraded = ?
WHERE  id = ?`
	res, err := s.db.ExecContext(ctx, q, summary, string(tagsJSON), time.Now().Unix(), boolInt(degraded), id)
	if err != nil {
		return fmt.Errorf("store: update ai fields: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update ai fields: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record with the given ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evidence WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies the database connection is alive. Used by readiness checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                 Record
		kind, tagsJSON      string
		uploadedAt, indexed int64
		indexedAt, degraded int64
	)
	err := row.Scan(&rec.ID, &rec.CaseID, &rec.FileName, &rec.FilePath, &kind,
		&rec.MimeType, &rec.FileSize, &uploadedAt, &rec.Width, &rec.Height,
		&rec.DurationSeconds, &rec.PageCount, &rec.AISummary, &tagsJSON,
		&indexed, &indexedAt, &degraded)
	if err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.UploadedAt = time.Unix(uploadedAt, 0).UTC()
	rec.Indexed = indexed != 0
	rec.Degraded = degraded != 0
	if indexedAt != 0 {
		rec.IndexedAt = time.Unix(indexedAt, 0).UTC()
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rec.AITags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if len(rec.AITags) == 0 {
		rec.AITags = nil
	}
	return &rec, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
