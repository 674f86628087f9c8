// Package migrate implements the migrate subcommand.
package migrate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
	"github.com/camunda-community-hub/c7-data-migrator/internal/runner"
)

// Command creates the migrate command, which walks the full source data set
// and migrates every entity the ledger has not seen yet.
func Command(settings *conf.Settings) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy entities into the target engine",
		Long:  "Walk the legacy database and migrate every entity without a ledger entry. Already migrated and skipped entities are left untouched, so an interrupted run can simply be started again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Execute(cmd.Context(), migrator.ModeMigrate, types)
		},
	}

	if err := setupFlags(cmd, settings, &types); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, types *[]string) error {
	cmd.Flags().StringSliceVar(types, "types", viper.GetStringSlice("migration.entitytypes"), "Entity types to migrate (default: all, in dependency order)")
	cmd.Flags().BoolVar(&settings.Migration.SkipValidation, "skip-validation", viper.GetBool("migration.skipvalidation"), "Migrate entities despite validation findings when a usable record can still be built")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
