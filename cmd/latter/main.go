package main

import (
	"github.com/loykin/latter/cmd/latter/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "latter",
	Short:         "Apply and roll back SQL migrations against SQLite, PostgreSQL and MySQL",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	v := viper.GetViper()

	// Environment variables support: LATTER_DATABASE_URL, LATTER_DIR, ...
	v.SetEnvPrefix("LATTER")
	v.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to a latter.yaml config file")
	pf.String("database-url", "", "connection string, e.g. sqlite:./app.db, postgres://..., mysql://...")
	pf.String("dir", "", "migrations directory (default ./migrations)")
	pf.String("table", "", "ledger table name (default schema_migrations)")
	pf.Bool("dry-run", false, "log what would run without touching the database")
	pf.Bool("force-sync", false, "delete ledger rows whose migration file is gone")
	pf.Bool("skip-out-of-sync", false, "ignore ledger rows whose migration file is gone")
	pf.Bool("verify-checksums", false, "fail when an applied migration file has changed")
	pf.String("log-level", "", "error, warn, info or debug")

	bindings := map[string]string{
		commands.KeyConfig:          "config",
		commands.KeyDatabaseURL:     "database-url",
		commands.KeyDir:             "dir",
		commands.KeyTable:           "table",
		commands.KeyDryRun:          "dry-run",
		commands.KeyForceSync:       "force-sync",
		commands.KeySkipOutOfSync:   "skip-out-of-sync",
		commands.KeyVerifyChecksums: "verify-checksums",
		commands.KeyLogLevel:        "log-level",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(commands.UpCmd)
	rootCmd.AddCommand(commands.DownCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.MarkCmd)
	rootCmd.AddCommand(commands.CreateCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.WaitCmd)
	rootCmd.AddCommand(commands.ServeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command failed")
	}
}
