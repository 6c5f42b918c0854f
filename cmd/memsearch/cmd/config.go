package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write memsearch configuration",
		Long: `Configuration is layered: defaults, then ~/.memsearch/config.toml,
then .memsearch.toml in the working directory. "config set" writes to
the user file by default, or to the project file with --project.`,
	}
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one config value, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				value, err := cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}

			for _, key := range cfg.Keys() {
				value, err := cfg.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist one config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.UserConfigPath()
			if project {
				path, err = config.ProjectConfigPath()
			}
			if err != nil {
				return err
			}

			// Edit only the target layer so the other layer keeps its own
			// overrides.
			cfg, err := config.LoadFiles(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (written to %s)\n", args[0], args[1], path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write to .memsearch.toml in the working directory")
	return cmd
}
