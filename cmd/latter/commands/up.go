package commands

import (
	"context"

	"github.com/loykin/latter"
	"github.com/spf13/cobra"
)

var UpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration in one transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLatter(cmd, func(ctx context.Context, s *settings, l *latter.Latter) error {
			res := l.Migrate(ctx)
			if !res.Success {
				return res.Err
			}
			printNames(cmd.OutOrStdout(), "apply", res.MigrationsApplied, s.opts.DryRun)
			return nil
		})
	},
}
