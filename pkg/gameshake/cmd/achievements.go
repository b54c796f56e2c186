package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
)

func NewAchievementsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "achievements",
		Aliases: []string{"ach"},
		Short:   "Inspect achievements of a game",
	}
	cmd.AddCommand(newAchievementsListCommand())
	return cmd
}

func newAchievementsListCommand() *cobra.Command {
	var (
		opts   listOptions
		gameID string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List achievements and whether you unlocked them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := client.AchievementsPath(gameID)
			if err != nil {
				return err
			}
			return runFetch(cmd, listing{
				resource: "achievements",
				path:     path,
				table:    tableOf(output.WriteAchievementTable),
				wide:     tableOf(output.WriteAchievementTableWide),
			}, opts)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game ID")
	_ = cmd.MarkFlagRequired("game")
	opts.addFlags(cmd)
	return cmd
}
