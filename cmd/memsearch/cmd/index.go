package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [paths...]",
		Short: "Sync markdown notes into the vector index",
		Long: `Scan the given files or directories (default: current directory),
chunk every markdown file and sync the chunks with the store. Unchanged
chunks are skipped; chunks that disappeared are deleted.

Examples:
  memsearch index
  memsearch index ~/notes ~/work/journal.md
  memsearch index --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			sess, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			stats, err := sess.engine.IndexAll(cmd.Context(), roots, force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d files: %d chunks added, %d removed, %d unchanged",
				stats.Files, stats.Added, stats.Removed, stats.Unchanged)
			if stats.PrunedSources > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d deleted files pruned", stats.PrunedSources)
			}
			if stats.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d files failed", stats.Failed)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-embed every chunk even if unchanged")
	return cmd
}
