package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"
)

// maxListedErrors is how many record errors are printed for a session
const maxListedErrors = 10

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	out     io.Writer
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer, verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{
		out:     out,
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: verbose,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if summary, ok := errors.AsErrorSummary(err); ok {
		return h.handleErrorSummary(summary)
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleErrorSummary lists the record errors found while loading a session
func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	errs := make([]error, 0, len(summary.Errors))
	for _, err := range summary.Errors {
		errs = append(errs, err)
	}

	fmt.Fprintf(h.out, "Error: the session contains invalid records\n\n")
	fmt.Fprintf(h.out, "%s\n", FormatValidationErrors(errs))

	categories := make([]string, 0, len(summary.ByCategory))
	for category := range summary.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(errors.ErrorCategory(category)))
	}

	return summary.GetExitCode()
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'reconciler --help' for usage.\n")

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Session files must end in .json, .yaml or .yml; CSV files go in --statement and --ledger`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the JSON or YAML syntax of the session file
• For CSV files check the header row and the --delimiter setting
• Ensure the files use UTF-8 encoding`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every record has an id, a date and an amount
• Dates use YYYY-MM-DD; amounts are plain decimals
• Statement types are CREDIT or DEBIT, ledger types INCOME or EXPENSE
• Identifiers must be unique inside each collection`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and RECONCILER_* environment variables
• Verify configuration file syntax if using --config
• Weights must add up to 1.0; tolerances must be positive
• Try running with --preset default first`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check the statement item identifiers passed with --item
• A cancelled session leaves every record untouched; run it again`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler <command> --help' for command-specific help`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatValidationErrors formats validation errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Validation error: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d validation errors:", len(errs)))

	for i, err := range errs {
		if i == maxListedErrors {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-maxListedErrors))
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
	}

	return strings.Join(lines, "\n")
}
