package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/store"
)

// searchResultJSON is the JSON shape of one search hit.
type searchResultJSON struct {
	Source    string  `json:"source"`
	Heading   string  `json:"heading,omitempty"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float32 `json:"score"`
	Content   string  `json:"content"`
}

func newSearchCmd() *cobra.Command {
	var topK int
	var jsonOutput bool
	var source string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed notes semantically",
		Long: `Embed the query and return the most similar chunks, with the source
file and line span of each hit.

Examples:
  memsearch search "what did we decide about the qdrant migration"
  memsearch search "standup notes" --top-k 3 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			sess, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			results, err := sess.engine.Search(cmd.Context(), query, topK, source)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printResultsJSON(cmd, results)
			}
			printResultsText(cmd, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "", "Restrict results to one source file")
	return cmd
}

func printResultsJSON(cmd *cobra.Command, results []store.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			Source:    r.Source,
			Heading:   r.Heading,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Score:     r.Score,
			Content:   r.Content,
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printResultsText(cmd *cobra.Command, results []store.SearchResult) {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s:%d-%d (%.3f)", i+1, r.Source, r.StartLine, r.EndLine, r.Score)
		if r.Heading != "" {
			fmt.Fprintf(w, " %s", r.Heading)
		}
		fmt.Fprintf(w, "\n%s\n\n", indent(r.Content))
	}
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "   " + line
	}
	return strings.Join(lines, "\n")
}
