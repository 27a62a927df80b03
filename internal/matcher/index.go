package matcher

import (
	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// AmountIndex buckets pending ledger entries by normalized amount so the
// perfect-match assigner only visits entries that can possibly qualify.
// Entries keep their input order inside each bucket.
type AmountIndex struct {
	buckets map[string][]indexedEntry
	size    int
}

type indexedEntry struct {
	position int
	entry    *models.LedgerEntry
}

// NewAmountIndex indexes the pending entries of the given slice. Nil and
// non-pending entries are skipped.
func NewAmountIndex(entries []*models.LedgerEntry) *AmountIndex {
	index := &AmountIndex{
		buckets: make(map[string][]indexedEntry),
	}

	for position, entry := range entries {
		if entry == nil || !entry.IsPending() {
			continue
		}
		key := amountKey(entry.Amount)
		index.buckets[key] = append(index.buckets[key], indexedEntry{position: position, entry: entry})
		index.size++
	}

	return index
}

// Candidates returns the indexed entries whose normalized amount equals the
// normalized amount given, in input order.
func (ai *AmountIndex) Candidates(amount decimal.Decimal) []*models.LedgerEntry {
	bucket := ai.lookup(amount)
	result := make([]*models.LedgerEntry, 0, len(bucket))
	for _, ie := range bucket {
		result = append(result, ie.entry)
	}
	return result
}

// Len returns the number of indexed entries
func (ai *AmountIndex) Len() int {
	return ai.size
}

// Buckets returns the number of distinct normalized amounts
func (ai *AmountIndex) Buckets() int {
	return len(ai.buckets)
}

func (ai *AmountIndex) lookup(amount decimal.Decimal) []indexedEntry {
	return ai.buckets[amountKey(amount)]
}

// amountKey is canonical for equal magnitudes: decimal.String trims trailing
// zeros, so 2500.00 and 2500 share a key.
func amountKey(amount decimal.Decimal) string {
	return NormalizeAmount(amount).String()
}
