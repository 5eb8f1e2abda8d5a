package commands

import (
	"fmt"
	"strings"

	"github.com/loykin/latter"
	"github.com/spf13/cobra"
)

var CreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a timestamped migration skeleton",
	Long: `Create a migration skeleton in the migrations directory.

The file name is prefixed with the current time in epoch milliseconds, the
unit the loader uses for name prefixes and the timestamp field of JSON and
YAML migrations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		s, err := loadSettings()
		if err != nil {
			return err
		}
		paths, err := latter.CreateMigration(latter.CreateOptions{
			Name:   strings.Join(args, " "),
			Dir:    s.opts.MigrationsDir,
			Format: format,
		})
		if err != nil {
			return err
		}
		for _, p := range paths {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	CreateCmd.Flags().String("format", latter.FormatSQL, "file format: sql, json or yaml")
}
