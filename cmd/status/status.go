// Package status implements the status subcommand.
package status

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/runner"
)

// Command creates the status command, which prints per-type ledger counts
// and the most recent runs.
func Command(settings *conf.Settings) *cobra.Command {
	var recentRuns int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration progress from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer r.Close()

			statuses, runs, err := r.Status(cmd.Context(), recentRuns)
			if err != nil {
				return err
			}

			printStatus(statuses, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&recentRuns, "runs", 10, "Number of recent runs to show")

	return cmd
}

func printStatus(statuses []runner.Status, runs []entities.MigrationRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	fmt.Fprintln(w, "ENTITY TYPE\tMIGRATED\tSKIPPED")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%d\t%d\n", s.EntityType, s.Migrated, s.Skipped)
	}
	w.Flush()

	if len(runs) == 0 {
		return
	}

	fmt.Println()
	fmt.Fprintln(w, "RUN\tMODE\tENTITY TYPE\tOUTCOME\tMIGRATED\tSKIPPED\tSTARTED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			run.RunID, run.Mode, run.EntityType, run.Outcome,
			run.MigratedCount, run.SkippedCount,
			run.StartedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}
