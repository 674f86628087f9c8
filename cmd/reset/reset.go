// Package reset implements the reset subcommand.
package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/runner"
)

// Command creates the reset command, which deletes ledger entries so the
// next migrate run re-processes the affected types from scratch.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		types   []string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete ledger entries for the selected entity types",
		Long:  "Delete ledger entries so the next migrate run re-processes the selected types. Target-side objects created by earlier runs are not touched; resetting a type whose objects still exist will create duplicates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("reset is destructive, re-run with --yes to confirm")
			}

			r, err := runner.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer r.Close()

			removed, err := r.Reset(cmd.Context(), types)
			for entityType, n := range removed {
				fmt.Printf("%s: %d entries removed\n", entityType, n)
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&types, "types", nil, "Entity types to reset (default: all)")
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")

	return cmd
}
