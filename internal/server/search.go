// Package server — search.go contains the semantic search and
// similar-evidence handlers.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/deeds-app/evidence-go/internal/logging"
	"github.com/deeds-app/evidence-go/internal/search"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// handleSearch handles GET /api/search?q=<query>. Optional query parameters:
//
//	case_id    restrict hits to these cases (repeatable or comma-separated)
//	kind       restrict hits to these file kinds (repeatable or comma-separated)
//	tag        restrict hits to evidence carrying these tags (repeatable or comma-separated)
//	limit      maximum number of hits (clamped server-side)
//	min_score  similarity lower bound in [0, 1]
//
// Values of the same parameter are OR-ed; different parameters are AND-ed.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "q is required", http.StatusBadRequest)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	minScore, err := parseMinScore(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, degraded, err := s.searcher.Search(r.Context(), query, parseFilter(r), limit, minScore)
	if err != nil {
		s.metrics.searchesTotal.WithLabelValues("error").Inc()
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	s.metrics.searchesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, searchResponse{
		Query:         query,
		DegradedQuery: degraded,
		Results:       nonNilResults(results),
	})
}

// handleSimilar handles GET /api/evidence/{id}/similar. It accepts the same
// filter and limit parameters as /api/search; the source evidence itself is
// never returned as a hit.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit, err := parseLimit(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.searcher.GetSimilar(r.Context(), id, parseFilter(r), limit)
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			writeJSONError(w, "evidence not found in index", http.StatusNotFound)
			return
		}
		s.metrics.searchesTotal.WithLabelValues("error").Inc()
		logging.FromContext(r.Context()).Error("similar lookup failed", slog.Any("error", err))
		writeJSONError(w, "similar lookup failed", http.StatusInternalServerError)
		return
	}

	s.metrics.searchesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, searchResponse{Results: nonNilResults(results)})
}

// parseFilter builds the payload filter from the request's case_id, kind, and
// tag query parameters. Each parameter may repeat or carry comma-separated
// values. Returns nil when none are set.
func parseFilter(r *http.Request) *vector.Filter {
	q := r.URL.Query()
	f := &vector.Filter{
		CaseIDs: splitValues(q["case_id"]),
		Kinds:   splitValues(q["kind"]),
		Tags:    splitValues(q["tag"]),
	}
	if f.Empty() {
		return nil
	}
	return f
}

// splitValues expands comma-separated entries within repeated query values,
// dropping empties.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseLimit parses the optional limit query parameter. Zero means
// "use the server default"; negative or non-numeric values are rejected.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

// parseMinScore parses the optional min_score query parameter. Zero means
// "use the server default"; values outside [0, 1] are rejected.
func parseMinScore(r *http.Request) (float32, error) {
	raw := r.URL.Query().Get("min_score")
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 32)
	if err != nil || f < 0 || f > 1 {
		return 0, errors.New("min_score must be a number between 0 and 1")
	}
	return float32(f), nil
}

// parseOffset parses the optional offset query parameter for paged listings.
func parseOffset(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("offset must be a non-negative integer")
	}
	return n, nil
}

// nonNilResults substitutes an empty slice for nil so the JSON body always
// carries a results array.
func nonNilResults(results []search.Result) []search.Result {
	if results == nil {
		return []search.Result{}
	}
	return results
}
