package vector

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

func TestFilterEmpty(t *testing.T) {
	t.Parallel()

	var nilFilter *Filter
	if !nilFilter.Empty() {
		t.Error("nil filter should be empty")
	}
	if !(&Filter{}).Empty() {
		t.Error("zero filter should be empty")
	}
	if (&Filter{CaseIDs: []string{"case-1"}}).Empty() {
		t.Error("filter with case constraint should not be empty")
	}
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	if got := buildFilter(nil); got != nil {
		t.Errorf("buildFilter(nil) = %v, want nil", got)
	}

	f := buildFilter(&Filter{
		CaseIDs: []string{"case-1", "case-2"},
		Kinds:   []string{"image"},
		Tags:    []string{"theft", "weapon"},
	})
	if f == nil {
		t.Fatal("buildFilter() returned nil for populated filter")
	}
	// One must-condition per populated field: fields AND together, values
	// within a field OR together.
	if len(f.Must) != 3 {
		t.Errorf("len(Must) = %d, want 3", len(f.Must))
	}
	if len(f.Should) != 0 {
		t.Errorf("len(Should) = %d, want 0", len(f.Should))
	}
}

// conditionMatches evaluates one keyword must-condition against a flattened
// payload, honouring list-valued fields like ai_tags.
func conditionMatches(t *testing.T, c *qdrant.Condition, payload map[string]any) bool {
	t.Helper()

	field := c.GetField()
	if field == nil {
		t.Fatalf("condition is not a field condition: %v", c)
	}
	keywords := field.GetMatch().GetKeywords().GetStrings()
	if len(keywords) == 0 {
		t.Fatalf("condition on %q carries no keywords", field.GetKey())
	}

	switch v := payload[field.GetKey()].(type) {
	case string:
		for _, kw := range keywords {
			if v == kw {
				return true
			}
		}
	case []string:
		for _, kw := range keywords {
			for _, elem := range v {
				if elem == kw {
					return true
				}
			}
		}
	}
	return false
}

// TestFilterCombinationSemantics runs the built conditions against mixed
// fixtures: values within one field OR together, fields AND together.
func TestFilterCombinationSemantics(t *testing.T) {
	t.Parallel()

	fixtures := map[string]map[string]any{
		"ev-1": {"case_id": "case-1", "file_kind": "image", "ai_tags": []string{"theft"}},
		"ev-2": {"case_id": "case-1", "file_kind": "pdf", "ai_tags": []string{"weapon"}},
		"ev-3": {"case_id": "case-2", "file_kind": "image", "ai_tags": []string{"theft", "weapon"}},
		"ev-4": {"case_id": "case-3", "file_kind": "text", "ai_tags": []string{"witness"}},
	}

	tests := []struct {
		name   string
		filter *Filter
		want   map[string]bool
	}{
		{
			name:   "single case",
			filter: &Filter{CaseIDs: []string{"case-1"}},
			want:   map[string]bool{"ev-1": true, "ev-2": true},
		},
		{
			name:   "values within a field OR",
			filter: &Filter{CaseIDs: []string{"case-1", "case-2"}},
			want:   map[string]bool{"ev-1": true, "ev-2": true, "ev-3": true},
		},
		{
			name:   "fields AND together",
			filter: &Filter{CaseIDs: []string{"case-1", "case-2"}, Kinds: []string{"image"}},
			want:   map[string]bool{"ev-1": true, "ev-3": true},
		},
		{
			name:   "tag matches any list element",
			filter: &Filter{Tags: []string{"weapon"}},
			want:   map[string]bool{"ev-2": true, "ev-3": true},
		},
		{
			name:   "all three fields conjoin",
			filter: &Filter{CaseIDs: []string{"case-2"}, Kinds: []string{"image"}, Tags: []string{"theft"}},
			want:   map[string]bool{"ev-3": true},
		},
		{
			name:   "conjunction can be unsatisfiable",
			filter: &Filter{Kinds: []string{"pdf"}, Tags: []string{"witness"}},
			want:   map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			qf := buildFilter(tt.filter)
			if qf == nil {
				t.Fatal("buildFilter() returned nil for populated filter")
			}
			for id, payload := range fixtures {
				matched := true
				for _, c := range qf.Must {
					if !conditionMatches(t, c, payload) {
						matched = false
						break
					}
				}
				if matched != tt.want[id] {
					t.Errorf("%s: matched = %v, want %v", id, matched, tt.want[id])
				}
			}
		})
	}
}

// TestVerifyCollectionDimension pins the startup contract for pre-existing
// collections: a size disagreement is a hard ErrDimensionMismatch, not a
// silent pass that surfaces as upsert failures later.
func TestVerifyCollectionDimension(t *testing.T) {
	t.Parallel()

	if err := verifyCollectionDimension("prosecutor_evidence", 384, 384); err != nil {
		t.Errorf("matching dimension: unexpected error %v", err)
	}

	err := verifyCollectionDimension("prosecutor_evidence", 384, 768)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("mismatched dimension: error = %v, want ErrDimensionMismatch", err)
	}

	// Unknown sizes on either side are not checked.
	if err := verifyCollectionDimension("prosecutor_evidence", 0, 768); err != nil {
		t.Errorf("unknown existing size: unexpected error %v", err)
	}
	if err := verifyCollectionDimension("prosecutor_evidence", 384, 0); err != nil {
		t.Errorf("unconfigured size: unexpected error %v", err)
	}
}

func TestBuildFilterSingleField(t *testing.T) {
	t.Parallel()

	f := buildFilter(&Filter{Tags: []string{"fingerprint"}})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("buildFilter() = %v, want exactly one condition", f)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	uploaded := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	in := Payload{
		CaseID:     "case-17",
		FileName:   "scene-photo.jpg",
		FileKind:   "image",
		MimeType:   "image/jpeg",
		FileSize:   204800,
		UploadedAt: uploaded,
		Summary:    "Photograph of the scene.",
		Tags:       []string{"evidence", "forensic"},
		Degraded:   true,
	}

	stored := qdrant.NewValueMap(payloadToMap(&in))
	out := payloadFromMap(stored)

	if out.CaseID != in.CaseID || out.FileName != in.FileName || out.FileKind != in.FileKind {
		t.Errorf("identity fields lost: %+v", out)
	}
	if out.FileSize != in.FileSize {
		t.Errorf("FileSize = %d, want %d", out.FileSize, in.FileSize)
	}
	if !out.UploadedAt.Equal(uploaded) {
		t.Errorf("UploadedAt = %v, want %v", out.UploadedAt, uploaded)
	}
	if out.Summary != in.Summary {
		t.Errorf("Summary = %q", out.Summary)
	}
	if len(out.Tags) != 2 || out.Tags[0] != "evidence" || out.Tags[1] != "forensic" {
		t.Errorf("Tags = %v", out.Tags)
	}
	if !out.Degraded {
		t.Error("Degraded flag lost")
	}
}

func TestPayloadFromMapMissingFields(t *testing.T) {
	t.Parallel()

	out := payloadFromMap(map[string]*qdrant.Value{})
	if out.CaseID != "" || out.FileSize != 0 || !out.UploadedAt.IsZero() || out.Tags != nil {
		t.Errorf("payloadFromMap(empty) = %+v, want zero payload", out)
	}

	out = payloadFromMap(nil)
	if out.CaseID != "" {
		t.Errorf("payloadFromMap(nil) = %+v, want zero payload", out)
	}
}
