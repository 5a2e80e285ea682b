package processor

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deeds-app/evidence-go/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKindFromName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want store.Kind
	}{
		{"report.pdf", store.KindPDF},
		{"notes.txt", store.KindText},
		{"README.md", store.KindText},
		{"server.log", store.KindText},
		{"statement.doc", store.KindWord},
		{"statement.docx", store.KindWord},
		{"memo.rtf", store.KindWord},
		{"scene.jpg", store.KindImage},
		{"scene.JPEG", store.KindImage},
		{"scan.tiff", store.KindImage},
		{"cctv.mp4", store.KindVideo},
		{"dashcam.mkv", store.KindVideo},
		{"interview.mp3", store.KindAudio},
		{"call.flac", store.KindAudio},
		{"archive.zip", store.KindUnknown},
		{"noextension", store.KindUnknown},
		{"trailing.dot.", store.KindUnknown},
	}
	for _, tt := range tests {
		if got := KindFromName(tt.name); got != tt.want {
			t.Errorf("KindFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMimeFromName(t *testing.T) {
	t.Parallel()

	if got := MimeFromName("report.pdf"); got != "application/pdf" {
		t.Errorf("MimeFromName(report.pdf) = %q", got)
	}
	if got := MimeFromName("scene.png"); got != "image/png" {
		t.Errorf("MimeFromName(scene.png) = %q", got)
	}
	if got := MimeFromName("mystery.evd"); got != "application/octet-stream" {
		t.Errorf("MimeFromName(mystery.evd) = %q, want fallback", got)
	}
	// Charset parameters must be stripped.
	if got := MimeFromName("notes.txt"); strings.Contains(got, ";") {
		t.Errorf("MimeFromName(notes.txt) = %q, want bare type", got)
	}
}

func TestProcessSizeCeiling(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 200)), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p := New(Config{MaxFileSize: 100, EnableTextExtraction: true}, testLogger())
	_, err := p.Process(context.Background(), path, "big.txt")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Process() error = %v, want ErrFileTooLarge", err)
	}
}

func TestProcessUnreadable(t *testing.T) {
	t.Parallel()

	p := New(Config{}, testLogger())
	_, err := p.Process(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), "missing.txt")
	if !errors.Is(err, ErrUnreadableFile) {
		t.Errorf("Process() error = %v, want ErrUnreadableFile", err)
	}
}

func TestProcessTextExtraction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statement.txt")
	const content = "Witness observed the suspect near the warehouse at 23:40."
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p := New(Config{EnableTextExtraction: true}, testLogger())
	got, err := p.Process(context.Background(), path, "statement.txt")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Kind != store.KindText {
		t.Errorf("Kind = %q, want text", got.Kind)
	}
	if got.Text != content {
		t.Errorf("Text = %q, want file contents", got.Text)
	}
	if got.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", got.Size, len(content))
	}
}

func TestProcessExtractionDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statement.txt")
	if err := os.WriteFile(path, []byte("some text"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p := New(Config{EnableTextExtraction: false}, testLogger())
	got, err := p.Process(context.Background(), path, "statement.txt")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty when extraction is disabled", got.Text)
	}
}

func TestProcessImageDimensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scene.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	p := New(Config{}, testLogger())
	got, err := p.Process(context.Background(), path, "scene.png")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Width != 64 || got.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", got.Width, got.Height)
	}
}

func TestPDFPageCount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	// Minimal page-tree markers as emitted by common writers.
	raw := "%PDF-1.4\n" +
		"1 0 obj << /Type /Pages /Kids [2 0 R 3 0 R] >> endobj\n" +
		"2 0 obj << /Type /Page /Parent 1 0 R >> endobj\n" +
		"3 0 obj << /Type /Page /Parent 1 0 R >> endobj\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	n, err := pdfPageCount(path)
	if err != nil {
		t.Fatalf("pdfPageCount() error: %v", err)
	}
	if n != 2 {
		t.Errorf("pdfPageCount() = %d, want 2", n)
	}
}

func TestDocxPartText(t *testing.T) {
	t.Parallel()

	const doc = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Witness statement, page one.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Suspect was seen </w:t></w:r><w:r><w:t>leaving the scene.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	got, err := docxPartText(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("docxPartText() error: %v", err)
	}
	want := "Witness statement, page one.\nSuspect was seen leaving the scene."
	if got != want {
		t.Errorf("docxPartText() = %q, want %q", got, want)
	}
}
