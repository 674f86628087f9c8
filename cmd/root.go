// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camunda-community-hub/c7-data-migrator/cmd/migrate"
	"github.com/camunda-community-hub/c7-data-migrator/cmd/reset"
	"github.com/camunda-community-hub/c7-data-migrator/cmd/retry"
	"github.com/camunda-community-hub/c7-data-migrator/cmd/status"
	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "c7-data-migrator",
		Short: "Process engine data migration tool",
		Long:  "Migrates process engine data from a legacy database into a target engine, tracking progress in a persistent ledger so interrupted runs resume where they left off.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		migrate.Command(settings),
		retry.Command(settings),
		status.Command(settings),
		reset.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Ledger.SQLite.Path, "ledger", viper.GetString("ledger.sqlite.path"), "Path to the SQLite ledger database")
	rootCmd.PersistentFlags().IntVar(&settings.Migration.BatchSize, "batchsize", viper.GetInt("migration.batchsize"), "Ledger insert batch size")
	rootCmd.PersistentFlags().IntVar(&settings.Migration.PageSize, "pagesize", viper.GetInt("migration.pagesize"), "Source query page size")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
