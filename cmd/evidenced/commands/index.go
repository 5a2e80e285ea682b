package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deeds-app/evidence-go/internal/logging"
	"github.com/deeds-app/evidence-go/internal/store"
)

// NewIndexCmd constructs the `evidenced index` command, which indexes a
// single evidence file from disk without going through the HTTP API.
func NewIndexCmd() *cobra.Command {
	var caseID string

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Index a single evidence file into a case",
		Long: `Classify, enrich, embed, and index one evidence file.

The file is referenced in place — it is not copied into the upload
directory. The resulting record is searchable immediately.

Examples:
  evidenced index --case case-2024-001 ./statements/witness1.txt
  evidenced index --case case-2024-001 ./photos/scene.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if caseID == "" {
				return fmt.Errorf("index: --case is required")
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("index: resolve path: %w", err)
			}
			fileName := filepath.Base(path)

			c, cleanup, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer cleanup()

			processed, err := c.proc.Process(ctx, path, fileName)
			if err != nil {
				return fmt.Errorf("index: process %s: %w", fileName, err)
			}

			rec := &store.Record{
				ID:              uuid.NewString(),
				CaseID:          caseID,
				FileName:        fileName,
				FilePath:        path,
				Kind:            processed.Kind,
				MimeType:        processed.MimeType,
				FileSize:        processed.Size,
				UploadedAt:      time.Now().UTC(),
				Width:           processed.Width,
				Height:          processed.Height,
				DurationSeconds: processed.DurationSeconds,
				PageCount:       processed.PageCount,
			}
			if err := c.store.Create(ctx, rec); err != nil {
				return fmt.Errorf("index: persist record: %w", err)
			}

			outcome, err := c.indexer.Index(ctx, rec, processed.Text)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log.Info("evidence indexed",
				slog.String("evidence_id", rec.ID),
				slog.String("case_id", caseID),
				slog.Bool("degraded", outcome.Degraded),
			)

			fmt.Printf("indexed %s (%s)\n", fileName, rec.ID)
			if outcome.Summary != "" {
				fmt.Printf("  summary: %s\n", outcome.Summary)
			}
			if len(outcome.Tags) > 0 {
				fmt.Printf("  tags:    %s\n", strings.Join(outcome.Tags, ", "))
			}
			if outcome.Degraded {
				fmt.Println("  note: indexed with a placeholder vector (no embedding backend configured)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "Case ID the evidence belongs to (required)")

	return cmd
}
