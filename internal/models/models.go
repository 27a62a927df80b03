// Package models defines the read-only records the matching engine works on:
// bank statement items and internal ledger entries.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used for every date in this package.
const DateLayout = "2006-01-02"

// MovementType is the direction of a bank statement movement.
type MovementType string

const (
	// MovementCredit is money entering the account
	MovementCredit MovementType = "CREDIT"
	// MovementDebit is money leaving the account
	MovementDebit MovementType = "DEBIT"
)

// String returns the string representation of MovementType
func (m MovementType) String() string {
	return string(m)
}

// IsValid checks if the movement type is valid
func (m MovementType) IsValid() bool {
	return m == MovementCredit || m == MovementDebit
}

// EntryType is the kind of an internal ledger entry.
type EntryType string

const (
	EntryIncome  EntryType = "INCOME"
	EntryExpense EntryType = "EXPENSE"
)

// String returns the string representation of EntryType
func (e EntryType) String() string {
	return string(e)
}

// IsValid checks if the entry type is valid
func (e EntryType) IsValid() bool {
	return e == EntryIncome || e == EntryExpense
}

// Status is the reconciliation status shared by statement items and ledger entries.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusReconciled Status = "RECONCILED"
	StatusDivergent  Status = "DIVERGENT"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReconciled, StatusDivergent:
		return true
	default:
		return false
	}
}

// StatementItem is one movement reported by the bank.
type StatementItem struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        MovementType    `json:"type"`
	Status      Status          `json:"status"`
}

// NewStatementItem creates a pending StatementItem
func NewStatementItem(id string, date time.Time, description string, amount decimal.Decimal, movement MovementType) *StatementItem {
	return &StatementItem{
		ID:          id,
		Date:        CalendarDate(date),
		Description: description,
		Amount:      amount,
		Type:        movement,
		Status:      StatusPending,
	}
}

// Validate performs basic validation on the StatementItem
func (s *StatementItem) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("statement item ID cannot be empty")
	}

	if s.Date.IsZero() {
		return fmt.Errorf("statement item %s: date cannot be zero", s.ID)
	}

	if !s.Type.IsValid() {
		return fmt.Errorf("statement item %s: invalid movement type: %s", s.ID, s.Type)
	}

	if !s.Status.IsValid() {
		return fmt.Errorf("statement item %s: invalid status: %s", s.ID, s.Status)
	}

	return nil
}

// IsPending reports whether the item is still awaiting reconciliation
func (s *StatementItem) IsPending() bool {
	return s.Status == StatusPending
}

// String returns a string representation of the StatementItem
func (s *StatementItem) String() string {
	return fmt.Sprintf("StatementItem{ID: %s, Amount: %s, Type: %s, Date: %s}",
		s.ID, s.Amount.String(), s.Type, s.Date.Format(DateLayout))
}

// MarshalJSON renders the amount with FormatAmount and the date as YYYY-MM-DD
func (s *StatementItem) MarshalJSON() ([]byte, error) {
	type Alias StatementItem
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: FormatAmount(s.Amount),
		Date:   s.Date.Format(DateLayout),
		Alias:  (*Alias)(s),
	})
}

// LedgerEntry is one income or expense recorded internally. Its amount is
// never negative: the sign is implied by Type.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        EntryType       `json:"type"`
	Category    string          `json:"category,omitempty"`
	Status      Status          `json:"status"`
}

// NewLedgerEntry creates a pending LedgerEntry
func NewLedgerEntry(id string, date time.Time, description string, amount decimal.Decimal, entryType EntryType) *LedgerEntry {
	return &LedgerEntry{
		ID:          id,
		Date:        CalendarDate(date),
		Description: description,
		Amount:      amount,
		Type:        entryType,
		Status:      StatusPending,
	}
}

// Validate performs basic validation on the LedgerEntry
func (l *LedgerEntry) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("ledger entry ID cannot be empty")
	}

	if l.Date.IsZero() {
		return fmt.Errorf("ledger entry %s: date cannot be zero", l.ID)
	}

	if l.Amount.IsNegative() {
		return fmt.Errorf("ledger entry %s: amount cannot be negative: %s", l.ID, l.Amount.String())
	}

	if !l.Type.IsValid() {
		return fmt.Errorf("ledger entry %s: invalid entry type: %s", l.ID, l.Type)
	}

	if !l.Status.IsValid() {
		return fmt.Errorf("ledger entry %s: invalid status: %s", l.ID, l.Status)
	}

	return nil
}

// IsPending reports whether the entry is still awaiting reconciliation
func (l *LedgerEntry) IsPending() bool {
	return l.Status == StatusPending
}

// String returns a string representation of the LedgerEntry
func (l *LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{ID: %s, Amount: %s, Type: %s, Date: %s}",
		l.ID, l.Amount.String(), l.Type, l.Date.Format(DateLayout))
}

// MarshalJSON renders the amount with FormatAmount and the date as YYYY-MM-DD
func (l *LedgerEntry) MarshalJSON() ([]byte, error) {
	type Alias LedgerEntry
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: FormatAmount(l.Amount),
		Date:   l.Date.Format(DateLayout),
		Alias:  (*Alias)(l),
	})
}

// FormatAmount renders an amount with at least two decimal places. Extra
// precision is kept, never rounded away.
func FormatAmount(amount decimal.Decimal) string {
	if amount.Exponent() < -2 {
		return amount.String()
	}
	return amount.StringFixed(2)
}

// Divergence is the monetary difference stored alongside a confirmed
// pairing: |statement amount| - ledger amount.
func Divergence(item *StatementItem, entry *LedgerEntry) decimal.Decimal {
	return item.Amount.Abs().Sub(entry.Amount)
}

// CalendarDate drops the time of day, keeping the calendar date in t's own
// location, and returns it as midnight UTC.
func CalendarDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s': %w", s, err)
	}

	return t, nil
}

var (
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	dotGrouped   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseAmount parses a decimal amount, tolerating currency symbols and
// thousand separators. Both "1,234.56" and "1.234,56" are accepted: when a
// value carries both separators the last one is the decimal point. A lone
// comma is a decimal comma only when one or two digits follow it
// ("2500,00"); a value such as "1,234" is ambiguous and rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	cleaned := raw
	for _, symbol := range []string{"R$", "$", "€", " "} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}

	sign := ""
	if strings.HasPrefix(cleaned, "-") || strings.HasPrefix(cleaned, "+") {
		sign, cleaned = cleaned[:1], cleaned[1:]
	}

	normalized, err := normalizeSeparators(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount '%s': %w", raw, err)
	}

	d, err := decimal.NewFromString(sign + normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", raw, err)
	}

	return d, nil
}

// normalizeSeparators rewrites an unsigned amount to use a dot as the only
// decimal separator and no grouping.
func normalizeSeparators(s string) (string, error) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma < 0:
		if strings.Count(s, ".") > 1 {
			if !dotGrouped.MatchString(s) {
				return "", fmt.Errorf("misplaced thousands separator")
			}
			return strings.ReplaceAll(s, ".", ""), nil
		}
		return s, nil

	case lastDot < 0:
		if strings.Count(s, ",") == 1 {
			if fraction := len(s) - lastComma - 1; fraction == 1 || fraction == 2 {
				return strings.Replace(s, ",", ".", 1), nil
			}
		} else if commaGrouped.MatchString(s) {
			return strings.ReplaceAll(s, ",", ""), nil
		}
		return "", fmt.Errorf("ambiguous comma separator")

	case lastComma > lastDot:
		integer, fraction := s[:lastComma], s[lastComma+1:]
		if !dotGrouped.MatchString(integer) {
			return "", fmt.Errorf("misplaced thousands separator")
		}
		return strings.ReplaceAll(integer, ".", "") + "." + fraction, nil

	default:
		integer, fraction := s[:lastDot], s[lastDot+1:]
		if !commaGrouped.MatchString(integer) {
			return "", fmt.Errorf("misplaced thousands separator")
		}
		return strings.ReplaceAll(integer, ",", "") + "." + fraction, nil
	}
}

// ParseMovementType parses a movement type, case-insensitively
func ParseMovementType(s string) (MovementType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREDIT", "C", "CR":
		return MovementCredit, nil
	case "DEBIT", "D", "DR":
		return MovementDebit, nil
	default:
		return "", fmt.Errorf("invalid movement type '%s': must be CREDIT or DEBIT", s)
	}
}

// ParseEntryType parses a ledger entry type, case-insensitively
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME":
		return EntryIncome, nil
	case "EXPENSE":
		return EntryExpense, nil
	default:
		return "", fmt.Errorf("invalid entry type '%s': must be INCOME or EXPENSE", s)
	}
}

// ParseStatus parses a reconciliation status; an empty string means pending
func ParseStatus(s string) (Status, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusPending, nil
	}

	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status '%s': must be PENDING, RECONCILED or DIVERGENT", s)
	}
	return status, nil
}
