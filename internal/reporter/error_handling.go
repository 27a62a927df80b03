package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bank-reconciliation-engine/internal/reconciler"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, err
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report to writer. When a JSON or CSV report
// fails, a console report is written instead, preceded by a notice.
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.Result, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.generateWithFallback(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.WithField("run_id", result.RunID).Debug("Report generation completed")
	return nil
}

// WriteReportFile writes the report to path. If path cannot be created, the
// report goes to a sibling backup file whose path is returned.
func (srg *SafeReportGenerator) WriteReportFile(result *reconciler.Result, path string) (string, error) {
	file, err := os.Create(path)
	if err != nil {
		if !isFileError(err) {
			return "", errors.FileError(errors.CodeFilePermission, path, err)
		}
		return srg.writeBackup(result, path, err)
	}

	if err := srg.writeAndClose(result, file, path); err != nil {
		return "", err
	}
	return path, nil
}

// writeAndClose renders the report into w and closes it. A failed close
// means buffered output may be lost, so it is reported like a write error.
func (srg *SafeReportGenerator) writeAndClose(result *reconciler.Result, w io.WriteCloser, path string) error {
	if err := srg.GenerateReportSafely(result, w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.FileError(errors.CodeFileWrite, path, err)
	}
	return nil
}

func (srg *SafeReportGenerator) validateInputs(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(result *reconciler.Result, writer io.Writer) error {
	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(result, writer, err)
	}

	return srg.wrapGenerationError(err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result *reconciler.Result, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated using format fallback")
	return nil
}

func (srg *SafeReportGenerator) writeBackup(result *reconciler.Result, originalPath string, originalErr error) (string, error) {
	backupPath := generateBackupPath(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	backupFile, err := os.Create(backupPath)
	if err != nil {
		return "", errors.FileError(errors.CodeFilePermission, originalPath, originalErr)
	}

	if err := srg.writeAndClose(result, backupFile, backupPath); err != nil {
		return "", err
	}

	srg.logger.WithField("backup_file", backupPath).Info("Report written to backup location")
	return backupPath, nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

// isFileError reports whether err is a file-system failure worth retrying elsewhere
func isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		isSpaceError(err)
}

// generateBackupPath places the backup next to the original, or in the
// temporary directory when the original directory does not exist.
func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	if _, err := os.Stat(dir); err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
