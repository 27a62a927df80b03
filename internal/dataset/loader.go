package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Loader reads reconciliation sessions from files or readers
type Loader struct {
	csv    *CSVConfig
	logger logger.Logger
}

// NewLoader creates a Loader. A nil csvConfig selects DefaultCSVConfig and a
// nil log the global logger.
func NewLoader(csvConfig *CSVConfig, log logger.Logger) (*Loader, error) {
	if csvConfig == nil {
		csvConfig = DefaultCSVConfig()
	}
	if err := csvConfig.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Loader{
		csv:    csvConfig,
		logger: log.WithComponent("dataset"),
	}, nil
}

// Load reads a JSON or YAML session file, chosen by extension
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return nil, recerrors.FileError(recerrors.CodeUnsupportedFormat, path,
			fmt.Errorf("a CSV file holds a single collection")).
			WithSuggestion("pass the statement and ledger CSV files separately")
	}

	file, err := openFile(path)
	if err != nil {
		l.logger.WithError(err).WithField("file_path", path).Error("Failed to open session file")
		return nil, err
	}
	defer file.Close()

	return l.Decode(ctx, file, format, path)
}

// Decode reads a session document from r. Source names the document in
// errors and logs.
func (l *Loader) Decode(ctx context.Context, r io.Reader, format Format, source string) (*Dataset, error) {
	var raw rawSession

	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, recerrors.ParseError(recerrors.CodeInvalidFormat, source, -1, "", "", err)
		}
	case FormatYAML:
		// an empty document is an empty session
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
			return nil, recerrors.ParseError(recerrors.CodeInvalidFormat, source, -1, "", "", err)
		}
	default:
		return nil, recerrors.FileError(recerrors.CodeUnsupportedFormat, source,
			fmt.Errorf("cannot decode %q documents", format))
	}

	return l.build(ctx, source, source, raw.StatementItems, raw.LedgerEntries)
}

// LoadCSV reads a session from a statement CSV file and a ledger CSV file
func (l *Loader) LoadCSV(ctx context.Context, statementPath, ledgerPath string) (*Dataset, error) {
	statements, err := l.readCSV(ctx, statementPath, statementColumns)
	if err != nil {
		return nil, err
	}

	entries, err := l.readCSV(ctx, ledgerPath, ledgerColumns)
	if err != nil {
		return nil, err
	}

	return l.build(ctx, statementPath, ledgerPath, statements, entries)
}

func (l *Loader) build(ctx context.Context, statementSource, ledgerSource string, statements, entries []rawRecord) (*Dataset, error) {
	source := statementSource
	if ledgerSource != statementSource {
		source = statementSource + " + " + ledgerSource
	}

	l.logger.WithFields(logger.Fields{
		"source":          source,
		"statement_items": len(statements),
		"ledger_entries":  len(entries),
	}).Debug("Converting session records")

	conv := newRecordConverter(statementSource, ledgerSource)
	ds := &Dataset{
		Source:         source,
		StatementItems: make([]*models.StatementItem, 0, len(statements)),
		LedgerEntries:  make([]*models.LedgerEntry, 0, len(entries)),
	}

	for i, raw := range statements {
		if err := ctx.Err(); err != nil {
			return nil, recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "dataset loading", err)
		}
		if item := conv.statementItem(i, raw); item != nil {
			ds.StatementItems = append(ds.StatementItems, item)
		}
	}

	for i, raw := range entries {
		if err := ctx.Err(); err != nil {
			return nil, recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "dataset loading", err)
		}
		if entry := conv.ledgerEntry(i, raw); entry != nil {
			ds.LedgerEntries = append(ds.LedgerEntries, entry)
		}
	}

	if len(conv.errs) > 0 {
		summary := recerrors.NewErrorSummary(conv.errs)
		sample := make([]string, 0, len(summary.SampleErrors))
		for _, e := range summary.SampleErrors {
			sample = append(sample, e.Error())
		}
		l.logger.WithFields(logger.Fields{
			"source":        source,
			"error_count":   summary.Total,
			"sample_errors": sample,
		}).Warn("Session contains invalid records")
		return nil, summary
	}

	l.logger.WithFields(logger.Fields{
		"source":          source,
		"statement_items": len(ds.StatementItems),
		"ledger_entries":  len(ds.LedgerEntries),
	}).Info("Session loaded")

	return ds, nil
}

// openFile opens path for reading, mapping failures to file errors
func openFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err == nil {
		return file, nil
	}

	switch {
	case os.IsNotExist(err):
		return nil, recerrors.FileError(recerrors.CodeFileNotFound, path, err)
	case os.IsPermission(err):
		return nil, recerrors.FileError(recerrors.CodeFilePermission, path, err)
	default:
		return nil, recerrors.FileError(recerrors.CodeUnexpectedError, path, err)
	}
}
