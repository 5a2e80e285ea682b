// Package server — evidence.go contains the evidence lifecycle handlers:
// upload, list, get, delete, and the reconcile sweep.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deeds-app/evidence-go/internal/logging"
	"github.com/deeds-app/evidence-go/internal/processor"
	"github.com/deeds-app/evidence-go/internal/store"
)

// multipartMemoryBytes is how much of a multipart upload is held in memory
// before spilling to a temp file.
const multipartMemoryBytes = 8 << 20

// handleUpload handles POST /api/evidence. It accepts a multipart form with a
// "case_id" field and a "file" part, persists the file and its relational
// record, then runs the indexing pipeline so the evidence becomes searchable.
//
// A vector indexing failure does not fail the upload: the record is kept
// unindexed and picked up by the next reconcile sweep.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	caseID := r.FormValue("case_id")
	if caseID == "" {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSONError(w, "case_id is required", http.StatusBadRequest)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSONError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileName := filepath.Base(hdr.Filename)
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSONError(w, "file name is required", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	dstPath := filepath.Join(s.cfg.UploadDir, id+strings.ToLower(filepath.Ext(fileName)))

	if err := saveUpload(file, dstPath); err != nil {
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload: save failed", slog.Any("error", err))
		writeJSONError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	processed, err := s.proc.Process(r.Context(), dstPath, fileName)
	if err != nil {
		_ = os.Remove(dstPath)
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		switch {
		case errors.Is(err, processor.ErrFileTooLarge):
			writeJSONError(w, "file exceeds size limit", http.StatusRequestEntityTooLarge)
		case errors.Is(err, processor.ErrUnreadableFile):
			writeJSONError(w, "file is unreadable", http.StatusUnprocessableEntity)
		default:
			log.Error("upload: processing failed", slog.Any("error", err))
			writeJSONError(w, "failed to process upload", http.StatusInternalServerError)
		}
		return
	}

	rec := &store.Record{
		ID:              id,
		CaseID:          caseID,
		FileName:        fileName,
		FilePath:        dstPath,
		Kind:            processed.Kind,
		MimeType:        processed.MimeType,
		FileSize:        processed.Size,
		UploadedAt:      time.Now().UTC(),
		Width:           processed.Width,
		Height:          processed.Height,
		DurationSeconds: processed.DurationSeconds,
		PageCount:       processed.PageCount,
	}

	if err := s.store.Create(r.Context(), rec); err != nil {
		_ = os.Remove(dstPath)
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload: create record failed", slog.Any("error", err))
		writeJSONError(w, "failed to persist evidence", http.StatusInternalServerError)
		return
	}

	resp := evidenceToResponse(rec)

	outcome, err := s.indexer.Index(r.Context(), rec, processed.Text)
	if err != nil {
		// The record survives unindexed; the reconcile sweep retries it.
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload: indexing failed",
			slog.String("evidence_id", id),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	resp.Summary = outcome.Summary
	resp.Tags = outcome.Tags
	resp.Indexed = true
	resp.Degraded = outcome.Degraded

	s.metrics.uploadsTotal.WithLabelValues("ok").Inc()
	s.metrics.uploadBytes.Observe(float64(processed.Size))
	writeJSON(w, http.StatusCreated, resp)
}

// saveUpload streams the multipart part to dstPath.
func saveUpload(src io.Reader, dstPath string) error {
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return fmt.Errorf("write %s: %w", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("close %s: %w", dstPath, err)
	}
	return nil
}

// handleList handles GET /api/evidence?case_id=<id>. Evidence is returned
// newest upload first; optional limit and offset parameters page through it.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caseID := r.URL.Query().Get("case_id")
	if caseID == "" {
		writeJSONError(w, "case_id is required", http.StatusBadRequest)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := parseOffset(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.store.ListByCase(r.Context(), caseID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("list evidence failed", slog.Any("error", err))
		writeJSONError(w, "failed to list evidence", http.StatusInternalServerError)
		return
	}

	resp := listEvidenceResponse{CaseID: caseID, Evidence: []evidenceResponse{}}
	for i := range records {
		resp.Evidence = append(resp.Evidence, evidenceToResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGet handles GET /api/evidence/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "evidence not found", http.StatusNotFound)
			return
		}
		logging.FromContext(r.Context()).Error("get evidence failed", slog.Any("error", err))
		writeJSONError(w, "failed to load evidence", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, evidenceToResponse(rec))
}

// handleDelete handles DELETE /api/evidence/{id}. The relational record is
// authoritative: once it is gone the delete has succeeded, even if the vector
// point or the file on disk could not be removed.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := logging.FromContext(r.Context())

	rec, err := s.store.Get(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("delete: load record failed", slog.Any("error", err))
		writeJSONError(w, "failed to delete evidence", http.StatusInternalServerError)
		return
	}

	if err := s.indexer.Deindex(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "evidence not found", http.StatusNotFound)
			return
		}
		log.Error("delete: deindex failed", slog.Any("error", err))
		writeJSONError(w, "failed to delete evidence", http.StatusInternalServerError)
		return
	}

	if rec != nil && rec.FilePath != "" {
		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("delete: file removal failed",
				slog.String("path", rec.FilePath),
				slog.Any("error", err),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// handleReconcile handles POST /api/reconcile. It sweeps records whose vector
// state is behind the relational row and re-runs indexing for each.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	repaired, err := s.indexer.Reconcile(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("reconcile failed", slog.Any("error", err))
		writeJSONError(w, "reconcile failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Repaired: repaired})
}

// evidenceToResponse renders a relational record as its API representation.
func evidenceToResponse(rec *store.Record) evidenceResponse {
	return evidenceResponse{
		ID:              rec.ID,
		CaseID:          rec.CaseID,
		FileName:        rec.FileName,
		FileKind:        string(rec.Kind),
		MimeType:        rec.MimeType,
		FileSize:        rec.FileSize,
		UploadedAt:      rec.UploadedAt,
		Width:           rec.Width,
		Height:          rec.Height,
		DurationSeconds: rec.DurationSeconds,
		PageCount:       rec.PageCount,
		Summary:         rec.AISummary,
		Tags:            rec.AITags,
		Indexed:         rec.Indexed,
		Degraded:        rec.Degraded,
	}
}
