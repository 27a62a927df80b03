package cmd

import (
	"context"
	"fmt"
	"strings"

	"bank-reconciliation-engine/cmd/reconciler/config"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app holds the state shared by every command of one invocation
type app struct {
	viper      *viper.Viper
	configFile string
	logger     logger.Logger
}

// NewRootCommand builds the command tree with its own configuration state
func NewRootCommand() *cobra.Command {
	a := &app{
		viper:  viper.New(),
		logger: logger.GetGlobalLogger(),
	}

	rootCmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Bank statement reconciliation tool",
		Long: `Reconciler matches bank statement items against internal ledger entries.
It ranks likely ledger entries for every pending statement item and pairs
the ones that match perfectly, so they can be confirmed without review.

A session is read from a single JSON or YAML file (--data) or from a pair of
CSV files (--statement and --ledger).

Examples:
  reconciler suggest --data session.yaml
  reconciler suggest --data session.yaml --item S3 --output-format json
  reconciler auto-match --statement statement.csv --ledger ledger.csv
  reconciler reconcile --data session.json --preset strict --output-file report.txt`,
		Version:           getVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initialize,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output")
	flags.String(config.KeyLogLevel, "", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "", "log format: text, json")
	flags.String(config.KeyLogFile, "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(
		newSuggestCommand(a),
		newAutoMatchCommand(a),
		newReconcileCommand(a),
	)

	return rootCmd
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, args []string) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool(config.KeyVerbose)
	return NewCLIErrorHandler(rootCmd.ErrOrStderr(), verbose).HandleError(err)
}

// initialize reads the config file and environment, then sets up logging.
// It runs before every subcommand, after flag parsing.
func (a *app) initialize(cmd *cobra.Command, args []string) error {
	if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
		return recerrors.InternalError(recerrors.CodeUnexpectedError, "flag binding", err)
	}

	if a.configFile != "" {
		a.viper.SetConfigFile(a.configFile)
		if err := a.viper.ReadInConfig(); err != nil {
			return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "config", a.configFile, err).
				WithSuggestion("check the config file path and syntax")
		}
	}

	a.viper.SetEnvPrefix("RECONCILER")
	a.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.viper.AutomaticEnv()

	logConfig, err := config.CreateLoggerConfig(a.viper)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "logging", logConfig.Output, err)
	}
	logger.SetGlobalLogger(log)
	a.logger = log.WithComponent("cli")

	if a.configFile != "" {
		a.logger.WithField("config_file", a.viper.ConfigFileUsed()).Debug("Using config file")
	}

	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
