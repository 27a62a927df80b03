// Package dataset loads reconciliation sessions: the bank statement items and
// the ledger entries they are reconciled against.
//
// A session is read either from a single JSON or YAML document holding both
// collections:
//
//	statement_items:
//	  - id: S1
//	    date: 2024-01-01
//	    description: TED RECEBIDO CLIENTE SILVA
//	    amount: "2500.00"
//	    type: CREDIT
//	ledger_entries:
//	  - id: L1
//	    date: 2024-01-01
//	    description: Recebimento Cliente Silva
//	    amount: 2500.00
//	    type: INCOME
//	    category: sales
//
// or from a pair of CSV files, one per collection, with the same column names.
//
// Amounts may be written as strings or numbers; number literals are kept
// verbatim so no float rounding happens. Status defaults to PENDING. A
// statement item without a type takes it from the sign of its amount.
//
// Loading never stops at the first bad record: every problem found is
// reported in a single errors.ErrorSummary.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"
)

// Collection names, as used in session documents and error locations.
const (
	CollectionStatement = "statement_items"
	CollectionLedger    = "ledger_entries"
)

// Format identifies a session file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", recerrors.FileError(recerrors.CodeUnsupportedFormat, path, nil)
	}
}

// Dataset is one reconciliation session
type Dataset struct {
	Source         string                  `json:"source"`
	StatementItems []*models.StatementItem `json:"statement_items"`
	LedgerEntries  []*models.LedgerEntry   `json:"ledger_entries"`
}

// Validate checks every record and the uniqueness of identifiers inside each
// collection. All problems are returned together as an *errors.ErrorSummary.
func (d *Dataset) Validate() error {
	var errs []*recerrors.ReconcilerError

	statementIDs := newIDTracker(CollectionStatement)
	for i, item := range d.StatementItems {
		if item == nil {
			errs = append(errs, nilRecordError(CollectionStatement, i))
			continue
		}
		if err := item.Validate(); err != nil {
			errs = append(errs, invalidRecordError(CollectionStatement, i, item.ID, err))
		}
		if dup := statementIDs.check(i, item.ID); dup != nil {
			errs = append(errs, dup)
		}
	}

	ledgerIDs := newIDTracker(CollectionLedger)
	for i, entry := range d.LedgerEntries {
		if entry == nil {
			errs = append(errs, nilRecordError(CollectionLedger, i))
			continue
		}
		if err := entry.Validate(); err != nil {
			errs = append(errs, invalidRecordError(CollectionLedger, i, entry.ID, err))
		}
		if dup := ledgerIDs.check(i, entry.ID); dup != nil {
			errs = append(errs, dup)
		}
	}

	if len(errs) > 0 {
		return recerrors.NewErrorSummary(errs)
	}
	return nil
}

// StatementItem returns the statement item with the given identifier
func (d *Dataset) StatementItem(id string) (*models.StatementItem, bool) {
	for _, item := range d.StatementItems {
		if item != nil && item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// PendingStatementItems returns the pending statement items in input order
func (d *Dataset) PendingStatementItems() []*models.StatementItem {
	pending := make([]*models.StatementItem, 0, len(d.StatementItems))
	for _, item := range d.StatementItems {
		if item != nil && item.IsPending() {
			pending = append(pending, item)
		}
	}
	return pending
}

// PendingLedgerEntries returns the pending ledger entries in input order
func (d *Dataset) PendingLedgerEntries() []*models.LedgerEntry {
	pending := make([]*models.LedgerEntry, 0, len(d.LedgerEntries))
	for _, entry := range d.LedgerEntries {
		if entry != nil && entry.IsPending() {
			pending = append(pending, entry)
		}
	}
	return pending
}

// String returns a short description of the dataset
func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset{Source: %s, StatementItems: %d, LedgerEntries: %d}",
		d.Source, len(d.StatementItems), len(d.LedgerEntries))
}

// idTracker reports identifiers seen twice in one collection
type idTracker struct {
	collection string
	seen       map[string]int
}

func newIDTracker(collection string) *idTracker {
	return &idTracker{collection: collection, seen: make(map[string]int)}
}

func (t *idTracker) check(index int, id string) *recerrors.ReconcilerError {
	if id == "" {
		return nil
	}
	if first, exists := t.seen[id]; exists {
		return recerrors.ValidationError(recerrors.CodeDuplicateID, recordField(t.collection, index, "id"), id,
			fmt.Errorf("identifier already used by %s", recordField(t.collection, first, ""))).
			WithContext("record", index)
	}
	t.seen[id] = index
	return nil
}

// recordField names a record, or one of its fields, for error messages:
// statement_items[3].amount
func recordField(collection string, index int, field string) string {
	if field == "" {
		return fmt.Sprintf("%s[%d]", collection, index)
	}
	return fmt.Sprintf("%s[%d].%s", collection, index, field)
}

func nilRecordError(collection string, index int) *recerrors.ReconcilerError {
	return recerrors.ValidationError(recerrors.CodeInvalidData, recordField(collection, index, ""), nil,
		fmt.Errorf("record is nil")).WithContext("record", index)
}

func invalidRecordError(collection string, index int, id string, err error) *recerrors.ReconcilerError {
	return recerrors.ValidationError(recerrors.CodeInvalidData, recordField(collection, index, ""), id, err).
		WithContext("record", index)
}
