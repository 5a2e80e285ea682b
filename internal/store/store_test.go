package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// openTestStore returns an in-memory store that is cleaned up with the test.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id, caseID string, uploadedAt time.Time) *Record {
	return &Record{
		ID:         id,
		CaseID:     caseID,
		FileName:   "scene-photo.jpg",
		FilePath:   "/uploads/" + id + ".jpg",
		Kind:       KindImage,
		MimeType:   "image/jpeg",
		FileSize:   204800,
		UploadedAt: uploadedAt,
		Width:      1920,
		Height:     1080,
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	uploaded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec := testRecord("11111111-1111-1111-1111-111111111111", "case-42", uploaded)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.CaseID != "case-42" {
		t.Errorf("CaseID = %q, want %q", got.CaseID, "case-42")
	}
	if got.Kind != KindImage {
		t.Errorf("Kind = %q, want %q", got.Kind, KindImage)
	}
	if !got.UploadedAt.Equal(uploaded) {
		t.Errorf("UploadedAt = %v, want %v", got.UploadedAt, uploaded)
	}
	if got.Indexed {
		t.Error("new record should not be marked indexed")
	}
	if got.AITags != nil {
		t.Errorf("new record AITags = %v, want nil", got.AITags)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "22222222-2222-2222-2222-222222222222")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAIFields(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("33333333-3333-3333-3333-333333333333", "case-7", time.Now().UTC())
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	tags := []string{"evidence", "fingerprint", "theft"}
	if err := s.UpdateAIFields(ctx, rec.ID, "Photograph of the scene.", tags, false); err != nil {
		t.Fatalf("UpdateAIFields() error: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Indexed {
		t.Error("record should be marked indexed after UpdateAIFields")
	}
	if got.IndexedAt.IsZero() {
		t.Error("IndexedAt should be set after UpdateAIFields")
	}
	if got.AISummary != "Photograph of the scene." {
		t.Errorf("AISummary = %q", got.AISummary)
	}
	if len(got.AITags) != 3 || got.AITags[1] != "fingerprint" {
		t.Errorf("AITags = %v, want %v", got.AITags, tags)
	}
	if got.Degraded {
		t.Error("Degraded = true, want false")
	}
}

func TestUpdateAIFieldsMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.UpdateAIFields(context.Background(), "44444444-4444-4444-4444-444444444444", "x", nil, false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAIFields() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAIFieldsDegraded(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("55555555-5555-5555-5555-555555555555", "case-7", time.Now().UTC())
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.UpdateAIFields(ctx, rec.ID, "summary", []string{"evidence"}, true); err != nil {
		t.Fatalf("UpdateAIFields() error: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Degraded {
		t.Error("Degraded = false, want true")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("66666666-6666-6666-6666-666666666666", "case-9", time.Now().UTC())
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestListByCaseOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		"77777777-7777-7777-7777-777777777771",
		"77777777-7777-7777-7777-777777777772",
		"77777777-7777-7777-7777-777777777773",
	}
	for i, id := range ids {
		rec := testRecord(id, "case-list", base.Add(time.Duration(i)*time.Hour))
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
	}
	// A record in another case must not leak into the results.
	other := testRecord("77777777-7777-7777-7777-777777777779", "case-other", base)
	if err := s.Create(ctx, other); err != nil {
		t.Fatalf("Create(other) error: %v", err)
	}

	recs, err := s.ListByCase(ctx, "case-list", 0, 0)
	if err != nil {
		t.Fatalf("ListByCase() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListByCase() returned %d records, want 3", len(recs))
	}
	// Newest upload first.
	if recs[0].ID != ids[2] || recs[2].ID != ids[0] {
		t.Errorf("ListByCase() order = [%s %s %s], want newest first", recs[0].ID, recs[1].ID, recs[2].ID)
	}

	// Limit and offset page through the same ordering.
	page, err := s.ListByCase(ctx, "case-list", 1, 1)
	if err != nil {
		t.Fatalf("ListByCase(limit=1, offset=1) error: %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Errorf("ListByCase(limit=1, offset=1) = %v, want [%s]", page, ids[1])
	}
}

func TestListUnindexed(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	pending := testRecord("88888888-8888-8888-8888-888888888881", "case-r", base)
	done := testRecord("88888888-8888-8888-8888-888888888882", "case-r", base.Add(time.Hour))
	for _, rec := range []*Record{pending, done} {
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if err := s.UpdateAIFields(ctx, done.ID, "done", nil, false); err != nil {
		t.Fatalf("UpdateAIFields() error: %v", err)
	}

	recs, err := s.ListUnindexed(ctx)
	if err != nil {
		t.Fatalf("ListUnindexed() error: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != pending.ID {
		t.Errorf("ListUnindexed() = %v, want only the pending record", recs)
	}
}
