package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"
)

// encodingCheckLines is how many lines are checked for valid UTF-8 on open
const encodingCheckLines = 100

// csvColumns lists the columns of one collection, in the order assumed when
// a file has no header row.
type csvColumns struct {
	collection string
	order      []string
	required   []string
}

var (
	statementColumns = csvColumns{
		collection: CollectionStatement,
		order:      []string{"id", "date", "description", "amount", "type", "status"},
		required:   []string{"id", "date", "amount"},
	}
	ledgerColumns = csvColumns{
		collection: CollectionLedger,
		order:      []string{"id", "date", "description", "amount", "type", "status", "category"},
		required:   []string{"id", "date", "amount", "type"},
	}
)

// CSVConfig describes the layout of statement and ledger CSV files
type CSVConfig struct {
	Delimiter rune `json:"delimiter"`
	HasHeader bool `json:"has_header"`

	// ColumnAliases maps a standard column name (id, date, description,
	// amount, type, status, category) to the header used in the files.
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`

	ValidateEncoding bool `json:"validate_encoding"`
}

// DefaultCSVConfig returns a comma separated layout with a header row
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Delimiter:        ',',
		HasHeader:        true,
		ValidateEncoding: true,
	}
}

// Validate checks if the CSV configuration is usable
func (c *CSVConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '"' || c.Delimiter == '\r' || c.Delimiter == '\n' ||
		c.Delimiter == utf8.RuneError || !utf8.ValidRune(c.Delimiter) {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "csv.delimiter", string(c.Delimiter),
			fmt.Errorf("delimiter must be a printable character other than a quote"))
	}

	for standard, alias := range c.ColumnAliases {
		if strings.TrimSpace(alias) == "" {
			return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "csv.column_aliases."+standard, alias,
				fmt.Errorf("column alias cannot be empty"))
		}
	}

	return nil
}

// column returns the header name used for a standard column
func (c *CSVConfig) column(standard string) string {
	if alias, exists := c.ColumnAliases[standard]; exists {
		return alias
	}
	return standard
}

// csvTable tracks the header and position while reading one file
type csvTable struct {
	path      string
	headers   []string
	headerMap map[string]int
	line      int
}

// index returns the position of a header, or -1. An exact match wins;
// otherwise the first header equal to name ignoring case is used.
func (t *csvTable) index(name string) int {
	if i, exists := t.headerMap[name]; exists {
		return i
	}
	for i, header := range t.headers {
		if strings.EqualFold(header, name) {
			return i
		}
	}
	return -1
}

// readCSV reads every data row of one collection file into raw records
func (l *Loader) readCSV(ctx context.Context, path string, columns csvColumns) ([]rawRecord, error) {
	log := l.logger.WithFields(logger.Fields{
		"file_path":  path,
		"collection": columns.collection,
	})
	log.Debug("Reading CSV file")

	file, err := openFile(path)
	if err != nil {
		log.WithError(err).Error("Failed to open CSV file")
		return nil, err
	}
	defer file.Close()

	if l.csv.ValidateEncoding {
		if err := validateEncoding(file, path); err != nil {
			log.WithError(err).Error("CSV encoding validation failed")
			return nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, recerrors.FileError(recerrors.CodeUnexpectedError, path, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = l.csv.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	table := &csvTable{path: path}
	if err := l.readHeaders(reader, table, columns); err != nil {
		log.WithError(err).Error("Failed to read CSV headers")
		return nil, err
	}

	var records []rawRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "csv parsing", err)
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, recerrors.ParseError(recerrors.CodeInvalidFormat, path, -1, "", "", err).
				WithContext("line", table.line+1)
		}
		table.line++

		if isEmptyRow(row) {
			continue
		}

		records = append(records, l.toRawRecord(table, row))
	}

	log.WithFields(logger.Fields{
		"lines":   table.line,
		"records": len(records),
	}).Debug("CSV file read")

	return records, nil
}

// readHeaders reads the header row, or assumes the standard column order
// when the files carry none, and checks the required columns are present.
func (l *Loader) readHeaders(reader *csv.Reader, table *csvTable, columns csvColumns) error {
	if l.csv.HasHeader {
		headers, err := reader.Read()
		if err == io.EOF {
			return recerrors.ParseError(recerrors.CodeInvalidFormat, table.path, -1, "", "",
				fmt.Errorf("file is empty")).
				WithSuggestion("ensure the file contains a header row")
		}
		if err != nil {
			return recerrors.ParseError(recerrors.CodeInvalidFormat, table.path, -1, "", "", err)
		}
		table.line++
		for _, h := range headers {
			table.headers = append(table.headers, strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		}
	} else {
		for _, name := range columns.order {
			table.headers = append(table.headers, l.csv.column(name))
		}
	}

	table.headerMap = make(map[string]int, len(table.headers))
	for i, header := range table.headers {
		table.headerMap[header] = i
	}

	var missing []string
	for _, name := range columns.required {
		if table.index(l.csv.column(name)) == -1 {
			missing = append(missing, l.csv.column(name))
		}
	}
	if len(missing) > 0 {
		return recerrors.ParseError(recerrors.CodeMissingColumn, table.path, -1, "headers", strings.Join(missing, ", "), nil).
			WithContext("available_headers", table.headers)
	}

	return nil
}

func (l *Loader) toRawRecord(table *csvTable, row []string) rawRecord {
	field := func(name string) string {
		i := table.index(l.csv.column(name))
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	return rawRecord{
		ID:          field("id"),
		Date:        field("date"),
		Description: field("description"),
		Amount:      rawAmount(field("amount")),
		Type:        field("type"),
		Status:      field("status"),
		Category:    field("category"),
		line:        table.line,
	}
}

// validateEncoding checks the first lines of file are valid UTF-8
func validateEncoding(file *os.File, path string) error {
	scanner := bufio.NewScanner(file)
	line := 0

	for scanner.Scan() && line < encodingCheckLines {
		line++
		if !utf8.Valid(scanner.Bytes()) {
			return recerrors.ParseError(recerrors.CodeInvalidFormat, path, -1, "", "",
				fmt.Errorf("invalid UTF-8 encoding detected")).
				WithContext("line", line).
				WithSuggestion("save the file in UTF-8 encoding and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return recerrors.FileError(recerrors.CodeUnexpectedError, path, err)
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
