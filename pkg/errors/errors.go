// Package errors defines the categorized error type shared by the reconciler
// command, the dataset loader and the matcher configuration.
//
// Every ReconcilerError carries a category that maps to a process exit code,
// a machine-readable code, a message, an optional suggestion for the user and
// free-form context values.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound      ErrorCode = "file_not_found"
	CodeFilePermission    ErrorCode = "file_permission"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeFileWrite         ErrorCode = "file_write"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeMissingColumn ErrorCode = "missing_column"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeInvalidEnum   ErrorCode = "invalid_enum"
	CodeMissingField  ErrorCode = "missing_field"
	CodeDuplicateID   ErrorCode = "duplicate_id"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Reconciliation errors
	CodeSessionCancelled ErrorCode = "session_cancelled"
	CodeUnknownItem      ErrorCode = "unknown_item"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileWrite:
		message = fmt.Sprintf("failed to write file: %s", path)
		suggestion = "check free disk space and that the destination is writable"
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported session file format: %s", path)
		suggestion = "use a .json, .yaml or .yml session file, or a pair of .csv files"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error. Record is the zero-based index
// of the offending record inside its collection, or -1 for document level
// failures.
func ParseError(code ErrorCode, source string, record int, field string, value string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid document format in %s", source)
		suggestion = "check that the file is well-formed JSON, YAML or CSV"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in %s", value, source)
		suggestion = "add the column to the header row or map it with a column alias"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s record %d, field '%s': '%s'", source, record, field, value)
		suggestion = "correct the value or remove the record"
	default:
		message = fmt.Sprintf("parse error in %s", source)
		suggestion = "check the file format and data integrity"
	}

	result := build(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("source", source)
	if record >= 0 {
		result.WithContext("record", record)
	}
	if field != "" {
		result.WithContext("field", field).WithContext("value", value)
	}
	return result
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD"
	case CodeInvalidEnum:
		message = fmt.Sprintf("unknown value in field '%s': %v", field, value)
		suggestion = "use one of the documented values for this field"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeDuplicateID:
		message = fmt.Sprintf("duplicate identifier in field '%s': %v", field, value)
		suggestion = "identifiers must be unique within a collection"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeSessionCancelled:
		message = fmt.Sprintf("reconciliation session cancelled during %s", operation)
		suggestion = "run the session again; no pairing was persisted"
	case CodeUnknownItem:
		message = fmt.Sprintf("statement item not found: %s", operation)
		suggestion = "check the item identifier against the session file"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return build(err, CategoryReconciliation, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return build(err, CategoryInternal, code, message).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary aggregates record-level errors found while loading a session.
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ReconcilerError    `json:"errors"`
	SampleErrors []*ReconcilerError    `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*ReconcilerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	const maxSamples = 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	categories := make([]string, 0, len(es.ByCategory))
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// AsErrorSummary extracts an ErrorSummary from an error chain
func AsErrorSummary(err error) (*ErrorSummary, bool) {
	var summary *ErrorSummary
	if errors.As(err, &summary) {
		return summary, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
