package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deeds-app/evidence-go/internal/logging"
	"github.com/deeds-app/evidence-go/internal/vector"
)

// NewSearchCmd constructs the `evidenced search` command, which runs a
// semantic query against the evidence index from the terminal.
func NewSearchCmd() *cobra.Command {
	var caseIDs []string
	var kinds []string
	var tags []string
	var limit int
	var minScore float32
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search evidence by meaning",
		Long: `Search indexed evidence semantically.

Filters narrow the hit set: values of the same flag are OR-ed, different
flags are AND-ed.

Examples:
  evidenced search "witness saw a red truck"
  evidenced search --case case-2024-001 --kind pdf "signed confession"
  evidenced search --tag theft --limit 5 "stolen vehicle"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query := strings.Join(args, " ")

			c, cleanup, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer cleanup()

			f := &vector.Filter{CaseIDs: caseIDs, Kinds: kinds, Tags: tags}
			if f.Empty() {
				f = nil
			}

			results, degraded, err := c.search.Search(ctx, query, f, limit, minScore)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if degraded && !asJSON {
				fmt.Println("note: query ran without an embedding backend, ranking is meaningless")
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Println("no matching evidence")
				return nil
			}
			for _, hit := range results {
				fmt.Printf("%.3f  %s  [%s] %s\n", hit.Score, hit.ID, hit.FileKind, hit.FileName)
				if hit.Snippet != "" {
					fmt.Printf("       %s\n", hit.Snippet)
				}
				if len(hit.Tags) > 0 {
					fmt.Printf("       tags: %s\n", strings.Join(hit.Tags, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&caseIDs, "case", nil, "Restrict hits to these case IDs (repeatable)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Restrict hits to these file kinds (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Restrict hits to evidence carrying these tags (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of hits (0 = server default)")
	cmd.Flags().Float32Var(&minScore, "min-score", 0, "Similarity lower bound between 0 and 1 (0 = server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")

	return cmd
}
