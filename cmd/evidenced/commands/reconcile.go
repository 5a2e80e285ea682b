package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deeds-app/evidence-go/internal/logging"
)

// NewReconcileCmd constructs the `evidenced reconcile` command, which
// re-indexes records whose vector state fell behind the relational store.
func NewReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair evidence records whose vector state is out of date",
		Long: `Sweep the evidence store for records that were never indexed, or whose
relational row missed the result of a past indexing run, and run the
indexing pipeline for each.

Safe to run repeatedly; records that are already in sync are untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			c, cleanup, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			defer cleanup()

			repaired, err := c.indexer.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}

			fmt.Printf("reconcile complete: %d record(s) repaired\n", repaired)
			return nil
		},
	}
}
