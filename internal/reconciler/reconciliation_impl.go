package reconciler

import (
	"context"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/dataset"
	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// Discrepancy is something a reviewer should look at before confirming
type Discrepancy struct {
	Type        DiscrepancyType `json:"type"`
	ItemID      string          `json:"item_id,omitempty"`
	EntryID     string          `json:"entry_id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Severity    Severity        `json:"severity"`
}

// DiscrepancyType represents the type of discrepancy
type DiscrepancyType string

const (
	DiscrepancyAmountDifference DiscrepancyType = "amount_difference"
	DiscrepancyDateMismatch     DiscrepancyType = "date_mismatch"
	DiscrepancyDuplicateItem    DiscrepancyType = "duplicate_statement_item"
	DiscrepancyDuplicateEntry   DiscrepancyType = "duplicate_ledger_entry"
	DiscrepancyMissingEntry     DiscrepancyType = "missing_ledger_entry"
)

// Severity represents the severity level of a discrepancy
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityFor maps the confidence of a suggestion to the severity of a
// discrepancy found on it: the less certain the pairing, the more severe.
func severityFor(confidence matcher.Confidence) Severity {
	switch confidence {
	case matcher.ConfidenceExcellent:
		return SeverityLow
	case matcher.ConfidenceGood:
		return SeverityMedium
	case matcher.ConfidenceFair:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// rankSuggestions ranks every selected pending statement item, checking ctx
// between items. all is the whole statement collection, used to tell unknown
// ids apart from ids filtered out by the date window.
func (s *Service) rankSuggestions(
	ctx context.Context,
	log logger.Logger,
	all []*models.StatementItem,
	items []*models.StatementItem,
	entries []*models.LedgerEntry,
	opts *Options,
) ([]*ItemSuggestions, error) {

	selected, skipped, err := selectItems(all, items, opts.ItemIDs)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		log.WithField("item_ids", skipped).Debug("Skipped statement items that are not pending or outside the date range")
	}

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "suggestion ranking",
		Total:       int64(len(selected)),
		LogInterval: opts.ProgressInterval,
		Logger:      log,
	})

	ranked := make([]*ItemSuggestions, 0, len(selected))
	for _, item := range selected {
		if err := ctx.Err(); err != nil {
			cancelled := recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "suggestion ranking", err).
				WithContext("items_ranked", len(ranked))
			tracker.CompleteWithError(cancelled)
			return nil, cancelled
		}

		ranked = append(ranked, &ItemSuggestions{
			Item:        item,
			Suggestions: s.engine.Suggest(item, entries),
		})
		tracker.Increment()
	}

	tracker.Complete()
	return ranked, nil
}

// selectItems returns the pending items of eligible to rank, in input order.
// With ids set only those items are kept: an id missing from all is an
// unknown item error, while a known id that is not pending or not in
// eligible is returned in skipped.
func selectItems(all, eligible []*models.StatementItem, ids []string) ([]*models.StatementItem, []string, error) {
	if len(ids) == 0 {
		pending := make([]*models.StatementItem, 0, len(eligible))
		for _, item := range eligible {
			if item.IsPending() {
				pending = append(pending, item)
			}
		}
		return pending, nil, nil
	}

	known := make(map[string]bool, len(all))
	for _, item := range all {
		known[item.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, nil, recerrors.ReconciliationError(recerrors.CodeUnknownItem, id, nil).
				WithContext("item_id", id)
		}
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	selected := make([]*models.StatementItem, 0, len(ids))
	for _, item := range eligible {
		if wanted[item.ID] && item.IsPending() {
			selected = append(selected, item)
			delete(wanted, item.ID)
		}
	}

	skipped := make([]string, 0)
	for _, id := range ids {
		if wanted[id] {
			skipped = append(skipped, id)
			delete(wanted, id)
		}
	}

	return selected, skipped, nil
}

func (s *Service) perfectMatches(items []*models.StatementItem, entries []*models.LedgerEntry) []*PerfectMatch {
	pairs := s.engine.PerfectMatches(items, entries)

	matches := make([]*PerfectMatch, 0, len(pairs))
	for _, pair := range pairs {
		matches = append(matches, &PerfectMatch{
			Item:       pair.Item,
			Entry:      pair.Entry,
			Divergence: models.Divergence(pair.Item, pair.Entry),
			DayGap:     matcher.DayDistance(pair.Item.Date, pair.Entry.Date),
		})
	}
	return matches
}

// filterByDate keeps the records dated inside [start, end]. Either bound may
// be nil.
func filterByDate(
	items []*models.StatementItem,
	entries []*models.LedgerEntry,
	start, end *time.Time,
) ([]*models.StatementItem, []*models.LedgerEntry) {

	if start == nil && end == nil {
		return items, entries
	}

	filteredItems := make([]*models.StatementItem, 0, len(items))
	for _, item := range items {
		if withinRange(item.Date, start, end) {
			filteredItems = append(filteredItems, item)
		}
	}

	filteredEntries := make([]*models.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if withinRange(entry.Date, start, end) {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	return filteredItems, filteredEntries
}

func withinRange(date time.Time, start, end *time.Time) bool {
	day := models.CalendarDate(date)
	if start != nil && day.Before(models.CalendarDate(*start)) {
		return false
	}
	if end != nil && day.After(models.CalendarDate(*end)) {
		return false
	}
	return true
}

// collectUnmatched returns the pending records left out of every perfect pair
func collectUnmatched(
	items []*models.StatementItem,
	entries []*models.LedgerEntry,
	matches []*PerfectMatch,
) ([]*models.StatementItem, []*models.LedgerEntry) {

	matchedItems := make(map[string]bool, len(matches))
	matchedEntries := make(map[string]bool, len(matches))
	for _, m := range matches {
		matchedItems[m.Item.ID] = true
		matchedEntries[m.Entry.ID] = true
	}

	unmatchedItems := make([]*models.StatementItem, 0)
	for _, item := range items {
		if item.IsPending() && !matchedItems[item.ID] {
			unmatchedItems = append(unmatchedItems, item)
		}
	}

	unmatchedEntries := make([]*models.LedgerEntry, 0)
	for _, entry := range entries {
		if entry.IsPending() && !matchedEntries[entry.ID] {
			unmatchedEntries = append(unmatchedEntries, entry)
		}
	}

	return unmatchedItems, unmatchedEntries
}

// analyzeDiscrepancies flags best suggestions that differ from their item,
// items nothing resembles, and pending records that look like duplicates.
func analyzeDiscrepancies(
	items []*models.StatementItem,
	entries []*models.LedgerEntry,
	ranked []*ItemSuggestions,
	strictDates bool,
) []*Discrepancy {

	discrepancies := make([]*Discrepancy, 0)

	for _, is := range ranked {
		best, ok := is.Best()
		if !ok {
			discrepancies = append(discrepancies, &Discrepancy{
				Type:        DiscrepancyMissingEntry,
				ItemID:      is.Item.ID,
				Description: fmt.Sprintf("no ledger entry resembles statement item %s", is.Item.ID),
				Amount:      is.Item.Amount.Abs(),
				Severity:    SeverityHigh,
			})
			continue
		}

		if divergence := models.Divergence(is.Item, best.Entry); !divergence.IsZero() {
			discrepancies = append(discrepancies, &Discrepancy{
				Type:    DiscrepancyAmountDifference,
				ItemID:  is.Item.ID,
				EntryID: best.Entry.ID,
				Description: fmt.Sprintf("amount difference: statement %s vs ledger %s",
					models.FormatAmount(is.Item.Amount.Abs()), models.FormatAmount(best.Entry.Amount)),
				Amount:   divergence.Abs(),
				Severity: severityFor(best.Confidence()),
			})
		}

		if strictDates {
			if gap := matcher.DayDistance(is.Item.Date, best.Entry.Date); gap > 0 {
				discrepancies = append(discrepancies, &Discrepancy{
					Type:    DiscrepancyDateMismatch,
					ItemID:  is.Item.ID,
					EntryID: best.Entry.ID,
					Description: fmt.Sprintf("date mismatch: statement %s vs ledger %s",
						is.Item.Date.Format(models.DateLayout), best.Entry.Date.Format(models.DateLayout)),
					Severity: SeverityMedium,
				})
			}
		}
	}

	discrepancies = append(discrepancies, duplicateItems(items)...)
	discrepancies = append(discrepancies, duplicateEntries(entries)...)

	return discrepancies
}

// duplicateKey identifies records that describe the same movement
func duplicateKey(date time.Time, amount decimal.Decimal, kind string) string {
	return fmt.Sprintf("%s|%s|%s", models.CalendarDate(date).Format(models.DateLayout), amount.Abs().String(), kind)
}

func duplicateItems(items []*models.StatementItem) []*Discrepancy {
	var found []*Discrepancy
	first := make(map[string]string)

	for _, item := range items {
		if !item.IsPending() {
			continue
		}
		key := duplicateKey(item.Date, item.Amount, string(item.Type))
		if original, exists := first[key]; exists {
			found = append(found, &Discrepancy{
				Type:        DiscrepancyDuplicateItem,
				ItemID:      item.ID,
				Description: fmt.Sprintf("statement item %s repeats date, amount and type of %s", item.ID, original),
				Amount:      item.Amount.Abs(),
				Severity:    SeverityMedium,
			})
			continue
		}
		first[key] = item.ID
	}

	return found
}

func duplicateEntries(entries []*models.LedgerEntry) []*Discrepancy {
	var found []*Discrepancy
	first := make(map[string]string)

	for _, entry := range entries {
		if !entry.IsPending() {
			continue
		}
		key := duplicateKey(entry.Date, entry.Amount, string(entry.Type))
		if original, exists := first[key]; exists {
			found = append(found, &Discrepancy{
				Type:        DiscrepancyDuplicateEntry,
				EntryID:     entry.ID,
				Description: fmt.Sprintf("ledger entry %s repeats date, amount and type of %s", entry.ID, original),
				Amount:      entry.Amount,
				Severity:    SeverityMedium,
			})
			continue
		}
		first[key] = entry.ID
	}

	return found
}

func buildSummary(
	ds *dataset.Dataset,
	items []*models.StatementItem,
	entries []*models.LedgerEntry,
	result *Result,
) *Summary {

	summary := &Summary{
		TotalStatementItems:    len(ds.StatementItems),
		TotalLedgerEntries:     len(ds.LedgerEntries),
		PerfectMatches:         len(result.PerfectMatches),
		UnmatchedItems:         len(result.UnmatchedItems),
		UnmatchedEntries:       len(result.UnmatchedEntries),
		BestConfidence:         make(map[string]int),
		MatchedAmount:          decimal.Zero,
		UnmatchedItemsAmount:   decimal.Zero,
		UnmatchedEntriesAmount: decimal.Zero,
	}

	for _, item := range items {
		if item.IsPending() {
			summary.PendingStatementItems++
		}
	}
	for _, entry := range entries {
		if entry.IsPending() {
			summary.PendingLedgerEntries++
		}
	}

	for _, is := range result.Suggestions {
		summary.TotalSuggestions += len(is.Suggestions)
		if best, ok := is.Best(); ok {
			summary.ItemsWithSuggestions++
			summary.BestConfidence[best.Confidence().String()]++
		}
	}

	for _, m := range result.PerfectMatches {
		summary.MatchedAmount = summary.MatchedAmount.Add(m.Item.Amount.Abs())
	}
	for _, item := range result.UnmatchedItems {
		summary.UnmatchedItemsAmount = summary.UnmatchedItemsAmount.Add(item.Amount.Abs())
	}
	for _, entry := range result.UnmatchedEntries {
		summary.UnmatchedEntriesAmount = summary.UnmatchedEntriesAmount.Add(entry.Amount)
	}

	if summary.PendingStatementItems > 0 {
		summary.MatchRate = float64(summary.PerfectMatches) / float64(summary.PendingStatementItems) * 100
	}

	return summary
}
