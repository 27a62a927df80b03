package cmd

import (
	"bank-reconciliation-engine/internal/reconciler"
	"bank-reconciliation-engine/internal/reporter"

	"github.com/spf13/cobra"
)

func newAutoMatchCommand(a *app) *cobra.Command {
	autoMatchCmd := &cobra.Command{
		Use:     "auto-match",
		Aliases: []string{"automatch"},
		Short:   "Pair statement items with ledger entries that match perfectly",
		Long: `Auto-match pairs pending statement items with pending ledger entries of
exactly equal amount, compatible type and dates at most one day apart. Each
record is used at most once. The pairs are reported, not persisted.

Examples:
  reconciler auto-match --data session.yaml
  reconciler auto-match --statement statement.csv --ledger ledger.csv --delimiter ';'
  reconciler auto-match --data session.json --assignment-strategy closest-gap --output-format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := reconciler.DefaultOptions()
			opts.SkipSuggestions = true

			result, err := a.run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			reportConfig, err := a.reportConfig(func(c *reporter.ReportConfig) {
				c.IncludeSuggestions = false
			})
			if err != nil {
				return err
			}
			return a.writeReport(cmd, result, reportConfig)
		},
	}

	addSessionFlags(autoMatchCmd)
	addMatcherFlags(autoMatchCmd)
	addOutputFlags(autoMatchCmd)

	return autoMatchCmd
}
