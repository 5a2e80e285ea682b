// Package processor classifies uploaded evidence files and extracts the
// metadata and text the indexing pipeline needs. Classification is driven by
// the file extension alone; metadata extraction is best-effort and never fails
// a file that can otherwise be read.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/gif"  // register GIF decoder for DecodeConfig
	_ "image/jpeg" // register JPEG decoder for DecodeConfig
	_ "image/png"  // register PNG decoder for DecodeConfig

	"github.com/deeds-app/evidence-go/internal/store"
)

// ErrUnreadableFile is returned when the evidence file cannot be opened or read.
var ErrUnreadableFile = errors.New("processor: file is unreadable")

// ErrFileTooLarge is returned when the evidence file exceeds the size ceiling.
var ErrFileTooLarge = errors.New("processor: file exceeds size limit")

// maxTextBytes caps how much raw text is read from a single evidence file.
// Anything beyond this is truncated, not rejected.
const maxTextBytes = 1 << 20 // 1 MiB

// Config holds file processing options.
type Config struct {
	// MaxFileSize is the size ceiling in bytes. Zero means no ceiling.
	MaxFileSize int64
	// EnableTextExtraction gates all text extraction. When false every
	// processed file carries empty text.
	EnableTextExtraction bool
	// EnableOCR gates OCR/transcription for image, video, and audio evidence.
	// No OCR engine is bundled; when enabled without one, extraction yields
	// empty text rather than an error.
	EnableOCR bool
}

// Processed is the result of running a file through the processor.
type Processed struct {
	// Kind is the broad media classification.
	Kind store.Kind
	// MimeType is derived from the file extension, with a generic fallback.
	MimeType string
	// Size is the file size in bytes.
	Size int64
	// Width and Height are pixel dimensions for images, 0 when unknown.
	Width  int
	Height int
	// DurationSeconds is the media length for audio/video, 0 when unknown.
	DurationSeconds float64
	// PageCount is the page count for PDFs, 0 when unknown.
	PageCount int
	// Text is the extracted text content, empty when extraction is disabled
	// or unavailable for the file kind.
	Text string
}

// Processor runs classification, metadata, and text extraction on evidence files.
type Processor struct {
	cfg Config
	log *slog.Logger
}

// New constructs a Processor.
func New(cfg Config, log *slog.Logger) *Processor {
	return &Processor{cfg: cfg, log: log}
}

// kindByExtension is the closed classification table. Extensions not listed
// here classify as KindUnknown.
var kindByExtension = map[string]store.Kind{
	"pdf":  store.KindPDF,
	"txt":  store.KindText,
	"md":   store.KindText,
	"log":  store.KindText,
	"doc":  store.KindWord,
	"docx": store.KindWord,
	"rtf":  store.KindWord,
	"jpg":  store.KindImage,
	"jpeg": store.KindImage,
	"png":  store.KindImage,
	"gif":  store.KindImage,
	"bmp":  store.KindImage,
	"tiff": store.KindImage,
	"mp4":  store.KindVideo,
	"avi":  store.KindVideo,
	"mov":  store.KindVideo,
	"wmv":  store.KindVideo,
	"flv":  store.KindVideo,
	"mkv":  store.KindVideo,
	"mp3":  store.KindAudio,
	"wav":  store.KindAudio,
	"aac":  store.KindAudio,
	"flac": store.KindAudio,
	"ogg":  store.KindAudio,
}

// KindFromName classifies a file by its extension. Unrecognised and missing
// extensions classify as KindUnknown. Matching is case-insensitive.
func KindFromName(fileName string) store.Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if k, ok := kindByExtension[ext]; ok {
		return k
	}
	return store.KindUnknown
}

// MimeFromName derives a MIME type from the file extension, falling back to
// application/octet-stream for unknown extensions.
func MimeFromName(fileName string) string {
	if mt := mime.TypeByExtension(filepath.Ext(fileName)); mt != "" {
		// Strip charset parameters so the stored value stays a bare type.
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		return mt
	}
	return "application/octet-stream"
}

// Process classifies the file at path, enforces the size ceiling, and runs
// best-effort metadata and text extraction. fileName is the original upload
// name (path may be a temp file with a different name).
func (p *Processor) Process(ctx context.Context, path, fileName string) (*Processed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, fileName, err)
	}
	if p.cfg.MaxFileSize > 0 && info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, fileName, info.Size(), p.cfg.MaxFileSize)
	}

	out := &Processed{
		Kind:     KindFromName(fileName),
		MimeType: MimeFromName(fileName),
		Size:     info.Size(),
	}

	p.extractMetadata(ctx, path, out)

	if p.cfg.EnableTextExtraction {
		text, err := p.extractText(path, out.Kind)
		if err != nil {
			// Extraction problems degrade to empty text; only a file we could
			// not open at all is a hard failure, and Stat succeeded above.
			p.log.Debug("processor: text extraction failed",
				slog.String("file", fileName),
				slog.String("error", err.Error()),
			)
		}
		out.Text = text
	}

	return out, nil
}

// extractMetadata fills dimension, duration, and page-count fields where the
// file kind supports them. All failures are logged at debug and swallowed.
func (p *Processor) extractMetadata(ctx context.Context, path string, out *Processed) {
	switch out.Kind {
	case store.KindImage:
		w, h, err := imageDimensions(path)
		if err != nil {
			p.log.Debug("processor: image dimensions unavailable", slog.String("error", err.Error()))
			return
		}
		out.Width, out.Height = w, h

	case store.KindVideo, store.KindAudio:
		d, err := mediaDuration(ctx, path)
		if err != nil {
			p.log.Debug("processor: media duration unavailable", slog.String("error", err.Error()))
			return
		}
		out.DurationSeconds = d

	case store.KindPDF:
		n, err := pdfPageCount(path)
		if err != nil {
			p.log.Debug("processor: pdf page count unavailable", slog.String("error", err.Error()))
			return
		}
		out.PageCount = n
	}
}

// imageDimensions decodes just the image header to get pixel dimensions.
func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// mediaDuration shells out to ffprobe when available. Hosts without ffprobe
// simply record no duration.
func mediaDuration(ctx context.Context, path string) (float64, error) {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("ffprobe not installed: %w", err)
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	raw, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return d, nil
}

// pdfPageCount counts page object markers in the raw PDF bytes. This matches
// what most writers emit; a miss just leaves the count at zero.
func pdfPageCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n := bytes.Count(data, []byte("/Type /Page")) + bytes.Count(data, []byte("/Type/Page"))
	// Each pattern also matches the "/Type /Pages" tree nodes; subtract them.
	n -= bytes.Count(data, []byte("/Type /Pages")) + bytes.Count(data, []byte("/Type/Pages"))
	if n < 0 {
		n = 0
	}
	return n, nil
}

// extractText dispatches per-kind text extraction.
func (p *Processor) extractText(path string, kind store.Kind) (string, error) {
	switch kind {
	case store.KindText:
		return readTextCapped(path)
	case store.KindWord:
		return wordText(path)
	case store.KindPDF:
		// No PDF text extractor is bundled; PDFs index on name and
		// enrichment output alone.
		return "", nil
	case store.KindImage, store.KindVideo, store.KindAudio:
		if !p.cfg.EnableOCR {
			return "", nil
		}
		// OCR/transcription hook point; no engine bundled.
		return "", nil
	default:
		return "", nil
	}
}

// readTextCapped reads at most maxTextBytes of the file as UTF-8 text.
func readTextCapped(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// wordText extracts plain text from docx archives by reading the main
// document part and stripping markup. Legacy .doc and .rtf are skipped.
func wordText(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".docx" {
		return "", nil
	}
	return docxText(path)
}
