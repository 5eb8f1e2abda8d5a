package commands

import (
	"context"
	"fmt"

	"github.com/loykin/latter"
	"github.com/loykin/latter/pkg/status"
	"github.com/spf13/cobra"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		return withLatter(cmd, func(ctx context.Context, s *settings, l *latter.Latter) error {
			info, err := status.FromLatter(ctx, l)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				js, err := info.JSON()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(out, js)
			case verbose && !all && limit > 0:
				_, _ = fmt.Fprint(out, info.FormatHumanWithLimit(true, limit, false))
			default:
				_, _ = fmt.Fprint(out, info.FormatColorized(verbose, s.doc.UseColor()))
			}
			return nil
		})
	},
}

func init() {
	StatusCmd.Flags().Bool("json", false, "print status as JSON")
	StatusCmd.Flags().BoolP("verbose", "v", false, "list every migration")
	StatusCmd.Flags().Int("limit", 0, "with --verbose, show only the N newest applied migrations")
	StatusCmd.Flags().Bool("all", false, "with --verbose, ignore --limit")
}
