// Package config turns command-line flags, environment variables and config
// file values into the configurations used by the engine, the dataset loader,
// the reporter and the logger.
//
// Only keys that were explicitly set (flag, RECONCILER_* variable or config
// file entry) override a default, so a single tolerance can be changed while
// every other matcher parameter keeps its documented value.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bank-reconciliation-engine/internal/dataset"
	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/reporter"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/viper"
)

// Configuration keys shared by flags, environment and config files
const (
	KeyPreset            = "preset"
	KeyValueTolerance    = "value-tolerance"
	KeyDateTolerance     = "date-tolerance"
	KeyWeightValue       = "weight-value"
	KeyWeightDate        = "weight-date"
	KeyWeightDescription = "weight-description"
	KeyMinScore          = "min-score"
	KeyMaxSuggestions    = "max-suggestions"
	KeyAssignment        = "assignment-strategy"

	KeyDelimiter = "delimiter"
	KeyNoHeader  = "no-header"

	KeyOutputFormat = "output-format"
	KeyOutputFile   = "output-file"
	KeyBreakdown    = "breakdown"
	KeySortByAmount = "sort-by-amount"
	KeyShowTop      = "show-top"

	KeyVerbose   = "verbose"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
	KeyLogFile   = "log-file"
)

// Presets lists the named matcher configurations
var Presets = map[string]func() *matcher.Config{
	"default": matcher.DefaultConfig,
	"strict":  matcher.StrictConfig,
	"relaxed": matcher.RelaxedConfig,
}

// PresetConfig returns the named preset
func PresetConfig(name string) (*matcher.Config, error) {
	if name == "" {
		return matcher.DefaultConfig(), nil
	}
	preset, exists := Presets[strings.ToLower(name)]
	if !exists {
		return nil, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, KeyPreset, name,
			fmt.Errorf("unknown preset")).
			WithSuggestion("use one of: default, strict, relaxed")
	}
	return preset(), nil
}

// CreateMatcherConfig builds the matcher configuration: the selected preset
// with every explicitly set key applied on top.
func CreateMatcherConfig(v *viper.Viper) (*matcher.Config, error) {
	base, err := PresetConfig(v.GetString(KeyPreset))
	if err != nil {
		return nil, err
	}

	overrides := &matcher.Overrides{}
	if v.IsSet(KeyValueTolerance) {
		value := v.GetFloat64(KeyValueTolerance)
		overrides.ValueTolerance = &value
	}
	if v.IsSet(KeyDateTolerance) {
		value := v.GetInt(KeyDateTolerance)
		overrides.DateToleranceDays = &value
	}
	if v.IsSet(KeyWeightValue) {
		value := v.GetFloat64(KeyWeightValue)
		overrides.ValueWeight = &value
	}
	if v.IsSet(KeyWeightDate) {
		value := v.GetFloat64(KeyWeightDate)
		overrides.DateWeight = &value
	}
	if v.IsSet(KeyWeightDescription) {
		value := v.GetFloat64(KeyWeightDescription)
		overrides.DescriptionWeight = &value
	}
	if v.IsSet(KeyMinScore) {
		value := v.GetInt(KeyMinScore)
		overrides.MinimumScore = &value
	}
	if v.IsSet(KeyMaxSuggestions) {
		value := v.GetInt(KeyMaxSuggestions)
		overrides.MaxSuggestions = &value
	}
	if v.IsSet(KeyAssignment) {
		value := matcher.AssignmentStrategy(strings.ToLower(v.GetString(KeyAssignment)))
		overrides.Assignment = &value
	}

	return matcher.Merge(base, overrides)
}

// CreateCSVConfig builds the CSV layout used with --statement and --ledger
func CreateCSVConfig(v *viper.Viper) (*dataset.CSVConfig, error) {
	config := dataset.DefaultCSVConfig()

	if v.IsSet(KeyDelimiter) {
		delimiter, err := ParseDelimiter(v.GetString(KeyDelimiter))
		if err != nil {
			return nil, err
		}
		config.Delimiter = delimiter
	}
	config.HasHeader = !v.GetBool(KeyNoHeader)

	if aliases := v.GetStringMapString("columns"); len(aliases) > 0 {
		config.ColumnAliases = aliases
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseDelimiter accepts a single character or one of the names tab,
// comma, semicolon and pipe.
func ParseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}

	if utf8.RuneCountInString(value) != 1 {
		return 0, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, KeyDelimiter, value,
			fmt.Errorf("delimiter must be a single character"))
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(v *viper.Viper, format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))

	switch config.Format {
	case reporter.FormatJSON:
		config.IncludeBreakdown = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeDiscrepancies = false
		config.IncludeProcessingStats = false
	}

	if v.IsSet(KeyBreakdown) {
		config.IncludeBreakdown = v.GetBool(KeyBreakdown)
	}
	if v.IsSet(KeySortByAmount) {
		config.SortByAmount = v.GetBool(KeySortByAmount)
	}
	if v.IsSet(KeyShowTop) {
		config.MaxSuggestionsShown = v.GetInt(KeyShowTop)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateLoggerConfig creates the logger configuration. --verbose selects
// debug level unless --log-level is given.
func CreateLoggerConfig(v *viper.Viper) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if v.GetBool(KeyVerbose) {
		config = logger.DebugConfig()
	}

	if v.IsSet(KeyLogLevel) {
		config.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	}
	if v.IsSet(KeyLogFormat) {
		config.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))
	}
	if file := v.GetString(KeyLogFile); file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}

	if err := config.Validate(); err != nil {
		return nil, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "logging", config.Level, err)
	}
	return config, nil
}

// ParseDateFlag parses an optional YYYY-MM-DD flag value; empty means unset
func ParseDateFlag(setting, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return nil, recerrors.ConfigurationError(recerrors.CodeInvalidConfig, setting, value, err).
			WithSuggestion("use the YYYY-MM-DD format")
	}
	return &t, nil
}
