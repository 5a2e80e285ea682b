package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/deeds-app/evidence-go/internal/logging"
	"github.com/deeds-app/evidence-go/internal/server"
	"github.com/deeds-app/evidence-go/internal/tracing"
)

// NewServeCmd constructs the `evidenced serve` command, which starts the
// HTTP server exposing the evidence API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evidence HTTP server",
		Long: `Start the evidence HTTP server on localhost.

The server exposes the evidence API: multipart upload with automatic
classification, enrichment, and vector indexing; per-case listing; semantic
search; similar-evidence lookup; and a reconcile endpoint that repairs
records whose vector state fell behind.

Examples:
  evidenced serve
  evidenced serve --port 9090
  EMBEDDING_PROVIDER=ollama ENRICHMENT_PROVIDER=ollama evidenced serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_provider", os.Getenv("EMBEDDING_PROVIDER")),
				slog.String("enrichment_provider", os.Getenv("ENRICHMENT_PROVIDER")),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			c, cleanup, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			pingers := []server.Pinger{
				server.NewQdrantPinger(c.index),
				server.NewStorePinger(c.store),
			}
			if c.embedder != nil {
				pingers = append(pingers, server.NewEmbedderPinger(c.embedder))
			}

			srv, err := server.New(c.store, c.indexer, c.search, c.proc, &server.Config{
				Host:            host,
				Port:            port,
				UploadDir:       os.Getenv("UPLOAD_DIR"),
				MaxUploadBytes:  getEnvInt64("MAX_FILE_SIZE", 0),
				Logger:          log,
				Pingers:         pingers,
				APIKey:          os.Getenv("EVIDENCE_API_KEY"),
				MetricsRegistry: c.registry,
				MetricsGatherer: c.registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
