package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"

	"gopkg.in/yaml.v3"
)

// rawSession is the document shape shared by JSON and YAML sessions
type rawSession struct {
	StatementItems []rawRecord `json:"statement_items" yaml:"statement_items"`
	LedgerEntries  []rawRecord `json:"ledger_entries" yaml:"ledger_entries"`
}

// rawRecord holds one record exactly as written. Both collections use it;
// category only applies to ledger entries.
type rawRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Date        string    `json:"date" yaml:"date"`
	Description string    `json:"description" yaml:"description"`
	Amount      rawAmount `json:"amount" yaml:"amount"`
	Type        string    `json:"type" yaml:"type"`
	Status      string    `json:"status" yaml:"status"`
	Category    string    `json:"category" yaml:"category"`

	// line is the CSV line the record came from, 0 for documents
	line int
}

// rawAmount accepts an amount written as a string or as a bare number.
// Numbers keep their literal text.
type rawAmount string

// UnmarshalJSON implements json.Unmarshaler
func (a *rawAmount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = rawAmount(s)
		return nil
	}

	*a = rawAmount(data)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (a *rawAmount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a single value", node.Line)
	}
	*a = rawAmount(node.Value)
	return nil
}

// recordConverter turns raw records into models, collecting every problem
// instead of stopping at the first one.
type recordConverter struct {
	sources map[string]string
	errs    []*recerrors.ReconcilerError

	statementIDs *idTracker
	ledgerIDs    *idTracker
}

func newRecordConverter(statementSource, ledgerSource string) *recordConverter {
	return &recordConverter{
		sources: map[string]string{
			CollectionStatement: statementSource,
			CollectionLedger:    ledgerSource,
		},
		statementIDs: newIDTracker(CollectionStatement),
		ledgerIDs:    newIDTracker(CollectionLedger),
	}
}

func (c *recordConverter) location(collection string) string {
	return fmt.Sprintf("%s (%s)", c.sources[collection], collection)
}

func (c *recordConverter) add(err *recerrors.ReconcilerError, raw rawRecord) {
	if raw.line > 0 {
		err.WithContext("line", raw.line)
	}
	c.errs = append(c.errs, err)
}

func (c *recordConverter) invalid(collection string, index int, raw rawRecord, field, value string, err error) {
	c.add(recerrors.ParseError(recerrors.CodeInvalidData, c.location(collection), index, field, value, err), raw)
}

func (c *recordConverter) missing(collection string, index int, raw rawRecord, field string) {
	c.add(recerrors.ValidationError(recerrors.CodeMissingField, recordField(collection, index, field), "", nil).
		WithContext("source", c.location(collection)).
		WithContext("record", index), raw)
}

// statementItem converts one statement record; nil means the record was
// rejected and its errors recorded.
func (c *recordConverter) statementItem(index int, raw rawRecord) *models.StatementItem {
	const collection = CollectionStatement
	ok := true

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		c.missing(collection, index, raw, "id")
		ok = false
	}

	date, err := models.ParseDate(raw.Date)
	if err != nil {
		c.invalid(collection, index, raw, "date", raw.Date, err)
		ok = false
	}

	amount, err := models.ParseAmount(string(raw.Amount))
	amountOK := err == nil
	if !amountOK {
		c.invalid(collection, index, raw, "amount", string(raw.Amount), err)
		ok = false
	}

	var movement models.MovementType
	switch {
	case strings.TrimSpace(raw.Type) != "":
		movement, err = models.ParseMovementType(raw.Type)
		if err != nil {
			c.invalid(collection, index, raw, "type", raw.Type, err)
			ok = false
		}
	case amountOK && amount.IsNegative():
		movement = models.MovementDebit
	default:
		movement = models.MovementCredit
	}

	status, err := models.ParseStatus(raw.Status)
	if err != nil {
		c.invalid(collection, index, raw, "status", raw.Status, err)
		ok = false
	}

	if dup := c.statementIDs.check(index, id); dup != nil {
		c.add(dup, raw)
		ok = false
	}

	if !ok {
		return nil
	}

	item := models.NewStatementItem(id, date, strings.TrimSpace(raw.Description), amount, movement)
	item.Status = status
	return item
}

// ledgerEntry converts one ledger record; nil means the record was rejected
// and its errors recorded.
func (c *recordConverter) ledgerEntry(index int, raw rawRecord) *models.LedgerEntry {
	const collection = CollectionLedger
	ok := true

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		c.missing(collection, index, raw, "id")
		ok = false
	}

	date, err := models.ParseDate(raw.Date)
	if err != nil {
		c.invalid(collection, index, raw, "date", raw.Date, err)
		ok = false
	}

	amount, err := models.ParseAmount(string(raw.Amount))
	if err != nil {
		c.invalid(collection, index, raw, "amount", string(raw.Amount), err)
		ok = false
	} else if amount.IsNegative() {
		c.add(recerrors.ValidationError(recerrors.CodeInvalidAmount, recordField(collection, index, "amount"), string(raw.Amount),
			fmt.Errorf("ledger amounts cannot be negative; the type carries the direction")).
			WithContext("record", index), raw)
		ok = false
	}

	var entryType models.EntryType
	if strings.TrimSpace(raw.Type) == "" {
		c.missing(collection, index, raw, "type")
		ok = false
	} else if entryType, err = models.ParseEntryType(raw.Type); err != nil {
		c.invalid(collection, index, raw, "type", raw.Type, err)
		ok = false
	}

	status, err := models.ParseStatus(raw.Status)
	if err != nil {
		c.invalid(collection, index, raw, "status", raw.Status, err)
		ok = false
	}

	if dup := c.ledgerIDs.check(index, id); dup != nil {
		c.add(dup, raw)
		ok = false
	}

	if !ok {
		return nil
	}

	entry := models.NewLedgerEntry(id, date, strings.TrimSpace(raw.Description), amount, entryType)
	entry.Category = strings.TrimSpace(raw.Category)
	entry.Status = status
	return entry
}
