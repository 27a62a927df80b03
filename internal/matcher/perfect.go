package matcher

import (
	"sort"

	"bank-reconciliation-engine/internal/models"
)

// perfectMatchMaxDays is the largest day distance a perfect match allows.
const perfectMatchMaxDays = 1

// PerfectMatches pairs pending statement items with pending ledger entries
// whose normalized amounts are exactly equal, whose dates are at most one day
// apart and whose types are compatible. Each item and each entry appears in
// at most one pair.
func (e *Engine) PerfectMatches(items []*models.StatementItem, entries []*models.LedgerEntry) []PerfectMatchPair {
	return PerfectMatches(items, entries, e.config.Assignment)
}

// PerfectMatches runs the perfect-match assignment with the given strategy.
// An unknown strategy falls back to first-fit.
func PerfectMatches(items []*models.StatementItem, entries []*models.LedgerEntry, strategy AssignmentStrategy) []PerfectMatchPair {
	index := NewAmountIndex(entries)

	if strategy == AssignClosestGap {
		return closestGap(items, index)
	}
	return firstFit(items, index)
}

// firstFit walks items in input order and gives each the first eligible
// unused entry, in input order.
func firstFit(items []*models.StatementItem, index *AmountIndex) []PerfectMatchPair {
	pairs := make([]PerfectMatchPair, 0)
	usedItems := make(map[string]bool)
	usedEntries := make(map[string]bool)

	for _, item := range items {
		if item == nil || !item.IsPending() || usedItems[item.ID] {
			continue
		}

		for _, candidate := range index.lookup(item.Amount) {
			entry := candidate.entry
			if usedEntries[entry.ID] || !isPerfect(item, entry) {
				continue
			}

			pairs = append(pairs, PerfectMatchPair{Item: item, Entry: entry})
			usedItems[item.ID] = true
			usedEntries[entry.ID] = true
			break
		}
	}

	return pairs
}

type perfectCandidate struct {
	itemPos  int
	entryPos int
	gap      int
	item     *models.StatementItem
	entry    *models.LedgerEntry
}

// closestGap collects every eligible pair, then assigns greedily from the
// smallest day gap upward. Ties fall back to item then entry input order.
// Amounts are equal in every eligible pair, so the day gap is the only
// distance left. Pairs are returned in item order.
func closestGap(items []*models.StatementItem, index *AmountIndex) []PerfectMatchPair {
	var candidates []perfectCandidate
	for itemPos, item := range items {
		if item == nil || !item.IsPending() {
			continue
		}
		for _, ie := range index.lookup(item.Amount) {
			if !isPerfect(item, ie.entry) {
				continue
			}
			candidates = append(candidates, perfectCandidate{
				itemPos:  itemPos,
				entryPos: ie.position,
				gap:      DayDistance(item.Date, ie.entry.Date),
				item:     item,
				entry:    ie.entry,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.gap != b.gap {
			return a.gap < b.gap
		}
		if a.itemPos != b.itemPos {
			return a.itemPos < b.itemPos
		}
		return a.entryPos < b.entryPos
	})

	usedItems := make(map[string]bool)
	usedEntries := make(map[string]bool)
	chosen := make([]perfectCandidate, 0)
	for _, c := range candidates {
		if usedItems[c.item.ID] || usedEntries[c.entry.ID] {
			continue
		}
		usedItems[c.item.ID] = true
		usedEntries[c.entry.ID] = true
		chosen = append(chosen, c)
	}

	sort.SliceStable(chosen, func(i, j int) bool {
		return chosen[i].itemPos < chosen[j].itemPos
	})

	pairs := make([]PerfectMatchPair, 0, len(chosen))
	for _, c := range chosen {
		pairs = append(pairs, PerfectMatchPair{Item: c.item, Entry: c.entry})
	}
	return pairs
}

// isPerfect checks the eligibility rules shared by both strategies. Pending
// status is handled by the callers.
func isPerfect(item *models.StatementItem, entry *models.LedgerEntry) bool {
	if !Compatible(item.Type, entry.Type) {
		return false
	}
	if !NormalizeAmount(item.Amount).Equal(NormalizeAmount(entry.Amount)) {
		return false
	}
	return DayDistance(item.Date, entry.Date) <= perfectMatchMaxDays
}
