package cmd

import (
	"context"
	"fmt"

	"bank-reconciliation-engine/cmd/reconciler/config"
	"bank-reconciliation-engine/internal/dataset"
	"bank-reconciliation-engine/internal/reconciler"
	"bank-reconciliation-engine/internal/reporter"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
)

// Session input keys
const (
	keyData      = "data"
	keyStatement = "statement"
	keyLedger    = "ledger"
)

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(keyData, "d", "", "session file with statement items and ledger entries (.json, .yaml)")
	cmd.Flags().String(keyStatement, "", "statement items CSV file (use with --ledger)")
	cmd.Flags().String(keyLedger, "", "ledger entries CSV file (use with --statement)")
	cmd.Flags().String(config.KeyDelimiter, ",", "CSV delimiter: a character or tab, comma, semicolon, pipe")
	cmd.Flags().Bool(config.KeyNoHeader, false, "CSV files have no header row")
}

func addMatcherFlags(cmd *cobra.Command) {
	cmd.Flags().String(config.KeyPreset, "default", "matcher preset: default, strict, relaxed")
	cmd.Flags().Float64(config.KeyValueTolerance, 0.01, "relative amount tolerance (0.01 = 1%)")
	cmd.Flags().Int(config.KeyDateTolerance, 3, "date tolerance in days")
	cmd.Flags().Float64(config.KeyWeightValue, 0.5, "weight of the amount score")
	cmd.Flags().Float64(config.KeyWeightDate, 0.3, "weight of the date score")
	cmd.Flags().Float64(config.KeyWeightDescription, 0.2, "weight of the description score")
	cmd.Flags().Int(config.KeyMinScore, 50, "minimum composite score of a suggestion")
	cmd.Flags().Int(config.KeyMaxSuggestions, 0, "maximum suggestions per item (0 = unlimited)")
	cmd.Flags().String(config.KeyAssignment, "first-fit", "perfect match assignment: first-fit, closest-gap")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(config.KeyOutputFormat, "f", "console", "output format: console, json, csv")
	cmd.Flags().StringP(config.KeyOutputFile, "o", "", "output file path (default: stdout)")
	cmd.Flags().Bool(config.KeyBreakdown, false, "show value, date and description scores")
	cmd.Flags().Int(config.KeyShowTop, 3, "suggestions shown per item (0 = all)")
	cmd.Flags().Bool(config.KeySortByAmount, false, "sort unmatched records by amount")
}

// loadSession reads the session named by --data or by --statement and --ledger
func (a *app) loadSession(ctx context.Context) (*dataset.Dataset, error) {
	data := a.viper.GetString(keyData)
	statement := a.viper.GetString(keyStatement)
	ledger := a.viper.GetString(keyLedger)

	switch {
	case data != "" && (statement != "" || ledger != ""):
		return nil, recerrors.ConfigurationError(recerrors.CodeConfigConflict, keyData, data,
			fmt.Errorf("--data cannot be combined with --statement or --ledger"))
	case data == "" && statement == "" && ledger == "":
		return nil, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, keyData, "",
			fmt.Errorf("no session given")).
			WithSuggestion("pass --data FILE, or --statement FILE.csv together with --ledger FILE.csv")
	case data == "" && (statement == "" || ledger == ""):
		return nil, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "statement/ledger",
			fmt.Sprintf("%q/%q", statement, ledger),
			fmt.Errorf("--statement and --ledger must be given together"))
	}

	csvConfig, err := config.CreateCSVConfig(a.viper)
	if err != nil {
		return nil, err
	}
	loader, err := dataset.NewLoader(csvConfig, a.logger)
	if err != nil {
		return nil, err
	}

	if data != "" {
		return loader.Load(ctx, data)
	}
	return loader.LoadCSV(ctx, statement, ledger)
}

func (a *app) newService() (*reconciler.Service, error) {
	matcherConfig, err := config.CreateMatcherConfig(a.viper)
	if err != nil {
		return nil, err
	}

	a.logger.WithField("matcher", matcherConfig.String()).Debug("Matcher configuration")
	return reconciler.NewService(matcherConfig, a.logger)
}

// reportConfig builds the report configuration; adjust narrows it to the
// sections a command produces.
func (a *app) reportConfig(adjust func(c *reporter.ReportConfig)) (*reporter.ReportConfig, error) {
	reportConfig, err := config.CreateReportConfig(a.viper, a.viper.GetString(config.KeyOutputFormat))
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(reportConfig)
	}
	return reportConfig, nil
}

// writeReport renders the result to --output-file, or to the command output
func (a *app) writeReport(cmd *cobra.Command, result *reconciler.Result, reportConfig *reporter.ReportConfig) error {
	generator, err := reporter.NewSafeReportGenerator(reportConfig, a.logger)
	if err != nil {
		return err
	}

	outputFile := a.viper.GetString(config.KeyOutputFile)
	if outputFile == "" {
		return generator.GenerateReportSafely(result, cmd.OutOrStdout())
	}

	written, err := generator.WriteReportFile(result, outputFile)
	if err != nil {
		return err
	}
	if written != outputFile {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write to %s, report saved to %s\n", outputFile, written)
	}

	a.logger.WithFields(logger.Fields{
		"run_id":      result.RunID,
		"output_file": written,
	}).Info("Report written")
	return nil
}

// run loads the session and runs the service with opts
func (a *app) run(ctx context.Context, opts *reconciler.Options) (*reconciler.Result, error) {
	ds, err := a.loadSession(ctx)
	if err != nil {
		return nil, err
	}

	service, err := a.newService()
	if err != nil {
		return nil, err
	}

	return service.Run(ctx, ds, opts)
}
