// Package commands defines all Cobra CLI commands for the evidenced binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/deeds-app/evidence-go/internal/audit"
	"github.com/deeds-app/evidence-go/internal/config"
	"github.com/deeds-app/evidence-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evidenced",
		Short: "Semantic evidence indexing and retrieval for case files",
		Long: `evidenced indexes case evidence files — documents, images, and recordings —
into a searchable semantic store.

Uploaded evidence is classified, enriched with tags and a summary, embedded,
and written to a Qdrant vector index so investigators can search a case by
meaning rather than file name. When no embedding or enrichment backend is
configured the pipeline degrades to keyword tags and placeholder vectors
instead of failing.

Backends are selected via the EMBEDDING_PROVIDER and ENRICHMENT_PROVIDER
environment variables or a YAML config file (~/.evidence/config.yaml).
See 'evidenced --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.evidence/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIndexCmd(),
		NewSearchCmd(),
		NewReconcileCmd(),
		NewVersionCmd(),
	)

	return root
}
