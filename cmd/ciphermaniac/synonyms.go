package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
)

func newSynonymsCmd(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synonyms",
		Short: "Inspect card synonym tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a synonyms file and report its size",
		Long:  `Parses a JSON or YAML synonyms file, layers it over the built-in reprints and prints the resulting number of entries. Without a path the configured synonyms.path is checked.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := global.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Synonyms.Path
			}

			table, err := cards.LoadSynonyms(path)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(built-in)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d synonyms\n", path, table.Len())
			return nil
		},
	})
	return cmd
}
