package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
)

func NewLeaderboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Aliases: []string{"lb"},
		Short:   "Inspect game leaderboards",
	}
	cmd.AddCommand(newLeaderboardShowCommand())
	return cmd
}

func newLeaderboardShowCommand() *cobra.Command {
	var (
		opts   listOptions
		gameID string
		board  string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the entries of a leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := client.LeaderboardPath(gameID, board)
			if err != nil {
				return err
			}
			return runFetch(cmd, listing{
				resource: "leaderboard",
				path:     path,
				table:    tableOf(output.WriteLeaderboardTable),
				wide:     tableOf(output.WriteLeaderboardTableWide),
			}, opts)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game ID")
	cmd.Flags().StringVar(&board, "board", client.DefaultLeaderboard, "Leaderboard name")
	_ = cmd.MarkFlagRequired("game")
	opts.addFlags(cmd)
	return cmd
}
