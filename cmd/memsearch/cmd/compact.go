package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/compact"
)

func newCompactCmd() *cobra.Command {
	var source string
	var llmProvider string
	var llmModel string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Summarize indexed notes into a dated memory file",
		Long: `Collect indexed chunks (optionally from one source file), summarize
them with an LLM, append the digest to memory/YYYY-MM-DD.md in the
output directory and index the result.

Examples:
  memsearch compact
  memsearch compact --source ~/notes/scratch.md
  memsearch compact --llm-provider google --llm-model gemini-2.5-flash`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			provider := sess.cfg.Compact.LLMProvider
			if llmProvider != "" {
				provider = llmProvider
			}
			model := sess.cfg.Compact.LLMModel
			if llmModel != "" {
				model = llmModel
			}

			summarizer, err := compact.NewSummarizer(ctx, provider, model)
			if err != nil {
				return err
			}
			defer func() { _ = summarizer.Close() }()

			res, err := compact.New(sess.store, summarizer, sess.engine).Flush(ctx, compact.Options{
				Source:    source,
				OutputDir: outputDir,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d chunks to %s\n\n%s\n", res.ChunksRead, res.Path, res.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Only compact chunks from this source file")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider override (ollama, google)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model override")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "Directory holding the memory/ folder")
	return cmd
}
