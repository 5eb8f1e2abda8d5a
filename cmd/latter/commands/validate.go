package commands

import (
	"fmt"

	"github.com/loykin/latter"
	"github.com/spf13/cobra"
)

var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the migrations directory and report files that would be skipped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		ms, skipped, err := latter.LoadMigrations(contextOf(cmd), s.opts.MigrationsDir, s.logger, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range ms {
			_, _ = fmt.Fprintf(out, "ok      %s (ts=%d v=%s)\n", m.Name(), m.Timestamp(), m.Version())
		}
		for _, sk := range skipped {
			_, _ = fmt.Fprintf(out, "skipped %s: %s\n", sk.File, sk.Reason)
		}
		if len(skipped) > 0 {
			return fmt.Errorf("validate: %d of %d migration file(s) skipped", len(skipped), len(skipped)+len(ms))
		}
		_, _ = fmt.Fprintf(out, "%d migration(s) valid\n", len(ms))
		return nil
	},
}
