package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/expand"
)

func newExpandCmd() *cobra.Command {
	var section bool
	var contextLines int

	cmd := &cobra.Command{
		Use:   "expand <file> <start-line> <end-line>",
		Short: "Show the context around a search hit",
		Long: `Widen a chunk's line span back into its source file. By default a few
context lines are added on each side; with --section the whole
enclosing heading section is printed.

Examples:
  memsearch expand notes/arch.md 42 48
  memsearch expand notes/arch.md 42 48 --lines 10
  memsearch expand notes/arch.md 42 48 --section`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("start line must be an integer, got %q", args[1])
			}
			end, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("end line must be an integer, got %q", args[2])
			}

			var res expand.Result
			if section {
				res, err = expand.Section(args[0], start, end)
			} else {
				res, err = expand.Lines(args[0], start, end, contextLines)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d-%d\n%s\n", res.Source, res.StartLine, res.EndLine, res.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&section, "section", false, "Expand to the full enclosing heading section")
	cmd.Flags().IntVar(&contextLines, "lines", 0, "Context lines on each side (default 5)")
	return cmd
}
