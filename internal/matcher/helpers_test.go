package matcher

import (
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

func day(value string) time.Time {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func credit(id, date, description, value string) *models.StatementItem {
	return models.NewStatementItem(id, day(date), description, amount(value), models.MovementCredit)
}

func debit(id, date, description, value string) *models.StatementItem {
	return models.NewStatementItem(id, day(date), description, amount(value), models.MovementDebit)
}

func income(id, date, description, value string) *models.LedgerEntry {
	return models.NewLedgerEntry(id, day(date), description, amount(value), models.EntryIncome)
}

func expense(id, date, description, value string) *models.LedgerEntry {
	return models.NewLedgerEntry(id, day(date), description, amount(value), models.EntryExpense)
}

func entryIDs(suggestions []MatchSuggestion) []string {
	ids := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		ids = append(ids, s.Entry.ID)
	}
	return ids
}

func pairIDs(pairs []PerfectMatchPair) [][2]string {
	ids := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, [2]string{p.Item.ID, p.Entry.ID})
	}
	return ids
}
