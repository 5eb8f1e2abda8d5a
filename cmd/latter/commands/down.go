package commands

import (
	"context"

	"github.com/loykin/latter"
	"github.com/spf13/cobra"
)

var DownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return withLatter(cmd, func(ctx context.Context, s *settings, l *latter.Latter) error {
			res := l.Rollback(ctx, steps)
			if !res.Success {
				return res.Err
			}
			printNames(cmd.OutOrStdout(), "roll back", res.MigrationsRolledBack, s.opts.DryRun)
			return nil
		})
	},
}

func init() {
	DownCmd.Flags().Int("steps", 1, "number of migrations to roll back")
}
