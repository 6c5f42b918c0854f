package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statsOutput is the JSON shape of the stats command.
type statsOutput struct {
	Chunks   int      `json:"chunks"`
	Files    int      `json:"files"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Sources  []string `json:"sources"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			count, err := sess.store.Count(ctx)
			if err != nil {
				return err
			}
			sources, err := sess.store.Sources(ctx)
			if err != nil {
				return err
			}

			out := statsOutput{
				Chunks:   count,
				Files:    len(sources),
				Provider: sess.cfg.Embedding.Provider,
				Model:    sess.embedder.ModelName(),
				Sources:  sources,
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "chunks:   %d\n", out.Chunks)
			fmt.Fprintf(w, "files:    %d\n", out.Files)
			fmt.Fprintf(w, "provider: %s\n", out.Provider)
			fmt.Fprintf(w, "model:    %s\n", out.Model)
			for _, src := range out.Sources {
				fmt.Fprintf(w, "  %s\n", src)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
