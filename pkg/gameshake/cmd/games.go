package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
)

func NewGamesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Inspect your game library",
	}
	cmd.AddCommand(newGamesListCommand())
	return cmd
}

func newGamesListCommand() *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the games in your library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, listing{
				resource: "games",
				path:     client.GamesPath(),
				table:    tableOf(output.WriteGameTable),
				wide:     tableOf(output.WriteGameTableWide),
			}, opts)
		},
	}
	opts.addFlags(cmd)
	return cmd
}
