package cmd

import (
	"bank-reconciliation-engine/internal/reconciler"
	"bank-reconciliation-engine/internal/reporter"

	"github.com/spf13/cobra"
)

const keyItem = "item"

func newSuggestCommand(a *app) *cobra.Command {
	suggestCmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank likely ledger entries for pending statement items",
		Long: `Suggest scores every pending ledger entry against each pending statement
item and lists the candidates above the minimum score, best first.

Examples:
  # Suggestions for every pending statement item
  reconciler suggest --data session.yaml

  # Only for some items, as JSON with the score breakdown
  reconciler suggest --data session.yaml --item S3 --item S4 --output-format json

  # Looser matching
  reconciler suggest --data session.yaml --preset relaxed --min-score 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := reconciler.DefaultOptions()
			opts.ItemIDs = a.viper.GetStringSlice(keyItem)
			opts.SkipPerfectMatches = true

			result, err := a.run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			reportConfig, err := a.reportConfig(func(c *reporter.ReportConfig) {
				c.IncludePerfectMatches = false
				c.IncludeUnmatched = false
				c.IncludeDiscrepancies = false
				c.IncludeProcessingStats = false
			})
			if err != nil {
				return err
			}
			return a.writeReport(cmd, result, reportConfig)
		},
	}

	addSessionFlags(suggestCmd)
	addMatcherFlags(suggestCmd)
	addOutputFlags(suggestCmd)
	suggestCmd.Flags().StringSlice(keyItem, nil, "statement item ID to rank (repeatable)")

	return suggestCmd
}
