package cmd

import (
	"bank-reconciliation-engine/cmd/reconciler/config"
	"bank-reconciliation-engine/internal/reconciler"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
)

// Flags of the reconcile command
const (
	keyStartDate        = "start-date"
	keyEndDate          = "end-date"
	keyStrictDates      = "strict-dates"
	keyProgressInterval = "progress-interval"
)

func newReconcileCommand(a *app) *cobra.Command {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a full reconciliation session",
		Long: `Reconcile ranks suggestions for every pending statement item, pairs the
perfect matches and reports what stays unmatched, together with the
discrepancies a reviewer should look at.

Examples:
  # Basic reconciliation
  reconciler reconcile --data session.yaml

  # CSV pair restricted to January
  reconciler reconcile --statement statement.csv --ledger ledger.csv \
    --start-date 2024-01-01 --end-date 2024-01-31

  # JSON report with custom tolerances
  reconciler reconcile --data session.json --output-format json --output-file report.json \
    --date-tolerance 2 --value-tolerance 0.02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.reconcileOptions()
			if err != nil {
				return err
			}

			result, err := a.run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			reportConfig, err := a.reportConfig(nil)
			if err != nil {
				return err
			}
			if err := a.writeReport(cmd, result, reportConfig); err != nil {
				return err
			}

			a.logger.WithFields(logger.Fields{
				"run_id":            result.RunID,
				"perfect_matches":   result.Summary.PerfectMatches,
				"unmatched_items":   result.Summary.UnmatchedItems,
				"unmatched_entries": result.Summary.UnmatchedEntries,
				"discrepancies":     len(result.Discrepancies),
				"duration":          result.Stats.TotalTime,
			}).Debug("Reconciliation finished")
			return nil
		},
	}

	addSessionFlags(reconcileCmd)
	addMatcherFlags(reconcileCmd)
	addOutputFlags(reconcileCmd)

	reconcileCmd.Flags().String(keyStartDate, "", "ignore records dated before this day (YYYY-MM-DD)")
	reconcileCmd.Flags().String(keyEndDate, "", "ignore records dated after this day (YYYY-MM-DD)")
	reconcileCmd.Flags().Bool(keyStrictDates, false, "flag best suggestions dated on another day")
	reconcileCmd.Flags().Duration(keyProgressInterval, reconciler.DefaultOptions().ProgressInterval, "how often progress is logged")

	return reconcileCmd
}

func (a *app) reconcileOptions() (*reconciler.Options, error) {
	opts := reconciler.DefaultOptions()

	start, err := config.ParseDateFlag(keyStartDate, a.viper.GetString(keyStartDate))
	if err != nil {
		return nil, err
	}
	end, err := config.ParseDateFlag(keyEndDate, a.viper.GetString(keyEndDate))
	if err != nil {
		return nil, err
	}

	opts.StartDate = start
	opts.EndDate = end
	opts.StrictDateMatching = a.viper.GetBool(keyStrictDates)
	opts.ProgressInterval = a.viper.GetDuration(keyProgressInterval)

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
