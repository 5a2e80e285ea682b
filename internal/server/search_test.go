package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deeds-app/evidence-go/internal/search"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// TestHandleSearch_RequiresQuery verifies that GET /api/search without q is
// rejected with 400.
func TestHandleSearch_RequiresQuery(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleSearch_InvalidLimit verifies that a non-numeric or negative limit
// is rejected with 400.
func TestHandleSearch_InvalidLimit(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)

	for _, raw := range []string{"abc", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft&limit="+raw, nil)
		w := httptest.NewRecorder()
		s.handleSearch(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: expected 400, got %d", raw, w.Code)
		}
	}
}

// TestHandleSearch_PassesFilterAndLimit verifies that repeatable case_id,
// kind, and tag parameters reach the search service as a populated filter.
func TestHandleSearch_PassesFilterAndLimit(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)
	sr.results = []search.Result{{ID: "ev-1", Score: 0.9, FileName: "a.txt"}}

	url := "/api/search?q=stolen+vehicle&case_id=case-7&case_id=case-8&kind=pdf&tag=theft&limit=5"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if sr.lastQuery != "stolen vehicle" {
		t.Errorf("query: expected %q, got %q", "stolen vehicle", sr.lastQuery)
	}
	if sr.lastLimit != 5 {
		t.Errorf("limit: expected 5, got %d", sr.lastLimit)
	}
	f := sr.lastFilter
	if f == nil {
		t.Fatal("expected a populated filter")
	}
	if len(f.CaseIDs) != 2 || f.CaseIDs[1] != "case-8" {
		t.Errorf("case IDs: got %v", f.CaseIDs)
	}
	if len(f.Kinds) != 1 || f.Kinds[0] != "pdf" {
		t.Errorf("kinds: got %v", f.Kinds)
	}
	if len(f.Tags) != 1 || f.Tags[0] != "theft" {
		t.Errorf("tags: got %v", f.Tags)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "ev-1" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

// TestHandleSearch_CommaSeparatedFilter verifies that comma-separated values
// inside one parameter expand to individual filter entries.
func TestHandleSearch_CommaSeparatedFilter(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft&kind=pdf,image&tag=theft,%20weapon", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	f := sr.lastFilter
	if f == nil {
		t.Fatal("expected a populated filter")
	}
	if len(f.Kinds) != 2 || f.Kinds[0] != "pdf" || f.Kinds[1] != "image" {
		t.Errorf("kinds: got %v", f.Kinds)
	}
	if len(f.Tags) != 2 || f.Tags[1] != "weapon" {
		t.Errorf("tags: got %v", f.Tags)
	}
}

// TestHandleSearch_MinScore verifies that min_score reaches the search
// service and that out-of-range values are rejected.
func TestHandleSearch_MinScore(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft&min_score=0.7", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sr.lastMinScore != 0.7 {
		t.Errorf("min_score: expected 0.7, got %v", sr.lastMinScore)
	}

	for _, raw := range []string{"abc", "-0.1", "1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft&min_score="+raw, nil)
		w := httptest.NewRecorder()
		s.handleSearch(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("min_score=%q: expected 400, got %d", raw, w.Code)
		}
	}
}

// TestHandleSearch_NoFilter verifies that a bare query passes a nil filter
// through to the search service.
func TestHandleSearch_NoFilter(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sr.lastFilter != nil {
		t.Errorf("expected nil filter, got %+v", sr.lastFilter)
	}
}

// TestHandleSearch_EmptyResultsArray verifies that zero hits render as an
// empty JSON array rather than null.
func TestHandleSearch_EmptyResultsArray(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=nothing", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	var resp struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(resp.Results) != "[]" {
		t.Errorf("expected [], got %s", resp.Results)
	}
}

// TestHandleSearch_DegradedQueryFlag verifies that the response carries the
// degraded marker when the query ran on a placeholder vector.
func TestHandleSearch_DegradedQueryFlag(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)
	sr.degraded = true

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=theft", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.DegradedQuery {
		t.Error("expected degraded_query:true")
	}
}

// TestHandleSimilar_NotFound verifies that an ID absent from the vector index
// maps to 404.
func TestHandleSimilar_NotFound(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)
	sr.similarErr = vector.ErrNotFound

	req := httptest.NewRequest(http.MethodGet, "/api/evidence/missing/similar", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	s.handleSimilar(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// TestHandleSimilar_Success verifies that similarity hits are rendered and
// the filter parameters are honoured.
func TestHandleSimilar_Success(t *testing.T) {
	t.Parallel()

	s, _, _, sr := newTestServer(t)
	sr.results = []search.Result{{ID: "ev-2", Score: 0.8}}

	req := httptest.NewRequest(http.MethodGet, "/api/evidence/ev-1/similar?kind=pdf&limit=3", nil)
	req.SetPathValue("id", "ev-1")
	w := httptest.NewRecorder()

	s.handleSimilar(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sr.lastLimit != 3 {
		t.Errorf("limit: expected 3, got %d", sr.lastLimit)
	}
	if sr.lastFilter == nil || len(sr.lastFilter.Kinds) != 1 {
		t.Errorf("filter: got %+v", sr.lastFilter)
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "ev-2" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}
