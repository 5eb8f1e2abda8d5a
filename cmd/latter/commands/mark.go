package commands

import (
	"context"
	"fmt"

	"github.com/loykin/latter"
	"github.com/spf13/cobra"
)

var MarkCmd = &cobra.Command{
	Use:   "mark <name>",
	Short: "Record a migration as applied without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLatter(cmd, func(ctx context.Context, s *settings, l *latter.Latter) error {
			if err := l.MarkAsApplied(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "marked %s\n", args[0])
			return nil
		})
	},
}
