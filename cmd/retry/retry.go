// Package retry implements the retry subcommand.
package retry

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
	"github.com/camunda-community-hub/c7-data-migrator/internal/runner"
)

// Command creates the retry command, which re-attempts previously skipped
// entities only.
func Command(settings *conf.Settings) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-attempt previously skipped entities",
		Long:  "Walk the ledger's skipped entries and attempt each one again, typically after a missing dependency has been migrated. Entities that still cannot migrate keep a refreshed skip reason.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Execute(cmd.Context(), migrator.ModeRetrySkipped, types)
		},
	}

	if err := setupFlags(cmd, &types); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, types *[]string) error {
	cmd.Flags().StringSliceVar(types, "types", viper.GetStringSlice("migration.entitytypes"), "Entity types to retry (default: all, in dependency order)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
