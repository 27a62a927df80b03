package matcher

import "bank-reconciliation-engine/internal/models"

// Compatible reports whether a statement movement may pair with a ledger
// entry type: credits with income, debits with expenses. Anything else,
// including unknown values, is incompatible.
func Compatible(movement models.MovementType, entryType models.EntryType) bool {
	switch movement {
	case models.MovementCredit:
		return entryType == models.EntryIncome
	case models.MovementDebit:
		return entryType == models.EntryExpense
	default:
		return false
	}
}
