package reconciler

import (
	"context"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/dataset"
	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// Test fixtures

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestDataset() *dataset.Dataset {
	reconciledItem := models.NewStatementItem("S5", date("2023-12-28"), "DEPOSITO", amount("100.00"), models.MovementCredit)
	reconciledItem.Status = models.StatusReconciled
	reconciledEntry := models.NewLedgerEntry("L5", date("2023-12-28"), "Deposito", amount("100.00"), models.EntryIncome)
	reconciledEntry.Status = models.StatusReconciled

	return &dataset.Dataset{
		Source: "test",
		StatementItems: []*models.StatementItem{
			models.NewStatementItem("S1", date("2024-01-01"), "TED RECEBIDO CLIENTE SILVA", amount("2500.00"), models.MovementCredit),
			models.NewStatementItem("S2", date("2024-01-02"), "PAGTO BOLETO ENERGIA ELETRICA", amount("-389.90"), models.MovementDebit),
			models.NewStatementItem("S3", date("2024-01-03"), "PIX RECEBIDO LIMA", amount("650.00"), models.MovementCredit),
			models.NewStatementItem("S4", date("2024-01-05"), "TARIFA PACOTE SERVICOS", amount("-45.00"), models.MovementDebit),
			reconciledItem,
		},
		LedgerEntries: []*models.LedgerEntry{
			models.NewLedgerEntry("L1", date("2024-01-01"), "Recebimento Cliente Silva", amount("2500.00"), models.EntryIncome),
			models.NewLedgerEntry("L2", date("2024-01-03"), "Conta de energia eletrica", amount("389.90"), models.EntryExpense),
			models.NewLedgerEntry("L3", date("2024-01-03"), "Deposito cliente Lima", amount("648.50"), models.EntryIncome),
			models.NewLedgerEntry("L4", date("2024-01-10"), "Aluguel escritorio", amount("3200.00"), models.EntryExpense),
			reconciledEntry,
		},
	}
}

func createTestService(t *testing.T, config *matcher.Config) *Service {
	t.Helper()
	service, err := NewService(config, logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return service
}

func errorCode(t *testing.T, err error) recerrors.ErrorCode {
	t.Helper()
	reconcilerErr, ok := recerrors.AsReconcilerError(err)
	if !ok {
		t.Fatalf("Expected *ReconcilerError, got %T: %v", err, err)
	}
	return reconcilerErr.Code
}

func TestNewService(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		service := createTestService(t, nil)
		if got := service.Engine().Config().MinimumScore; got != matcher.DefaultConfig().MinimumScore {
			t.Errorf("Expected default minimum score, got %d", got)
		}
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		config := matcher.DefaultConfig()
		config.MinimumScore = 101

		_, err := NewService(config, logger.Discard())
		if err == nil {
			t.Fatal("Expected error for invalid config")
		}
		if code := errorCode(t, err); code != recerrors.CodeInvalidConfig {
			t.Errorf("Expected code %s, got %s", recerrors.CodeInvalidConfig, code)
		}
	})
}

func TestOptionsValidate(t *testing.T) {
	start := date("2024-01-10")
	end := date("2024-01-01")

	tests := []struct {
		name     string
		opts     *Options
		wantCode recerrors.ErrorCode
	}{
		{"defaults", DefaultOptions(), ""},
		{"reversed date range", &Options{StartDate: &start, EndDate: &end}, recerrors.CodeConfigConflict},
		{"nothing to do", &Options{SkipSuggestions: true, SkipPerfectMatches: true}, recerrors.CodeConfigConflict},
		{"negative interval", &Options{ProgressInterval: -time.Second}, recerrors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if code := errorCode(t, err); code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestRun(t *testing.T) {
	service := createTestService(t, nil)

	result, err := service.Run(context.Background(), createTestDataset(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RunID == "" {
		t.Error("Expected a run ID")
	}
	if result.Source != "test" {
		t.Errorf("Expected source 'test', got %q", result.Source)
	}

	t.Run("suggestions", func(t *testing.T) {
		if len(result.Suggestions) != 4 {
			t.Fatalf("Expected 4 ranked items, got %d", len(result.Suggestions))
		}

		wantBest := map[string]string{"S1": "L1", "S2": "L2", "S3": "L3"}
		for _, is := range result.Suggestions {
			best, ok := is.Best()
			want, expected := wantBest[is.Item.ID]
			if !expected {
				if ok {
					t.Errorf("Expected no suggestion for %s, got %s", is.Item.ID, best.Entry.ID)
				}
				continue
			}
			if !ok || best.Entry.ID != want {
				t.Errorf("Expected best suggestion %s for %s", want, is.Item.ID)
			}
		}
	})

	t.Run("perfect matches", func(t *testing.T) {
		if len(result.PerfectMatches) != 2 {
			t.Fatalf("Expected 2 perfect matches, got %d", len(result.PerfectMatches))
		}

		first, second := result.PerfectMatches[0], result.PerfectMatches[1]
		if first.Item.ID != "S1" || first.Entry.ID != "L1" || first.DayGap != 0 {
			t.Errorf("Unexpected first match: %s-%s gap %d", first.Item.ID, first.Entry.ID, first.DayGap)
		}
		if second.Item.ID != "S2" || second.Entry.ID != "L2" || second.DayGap != 1 {
			t.Errorf("Unexpected second match: %s-%s gap %d", second.Item.ID, second.Entry.ID, second.DayGap)
		}
		if !second.Divergence.IsZero() {
			t.Errorf("Expected zero divergence, got %s", second.Divergence)
		}
	})

	t.Run("unmatched", func(t *testing.T) {
		if len(result.UnmatchedItems) != 2 || result.UnmatchedItems[0].ID != "S3" || result.UnmatchedItems[1].ID != "S4" {
			t.Errorf("Expected unmatched items S3, S4, got %v", result.UnmatchedItems)
		}
		if len(result.UnmatchedEntries) != 2 || result.UnmatchedEntries[0].ID != "L3" || result.UnmatchedEntries[1].ID != "L4" {
			t.Errorf("Expected unmatched entries L3, L4, got %v", result.UnmatchedEntries)
		}
	})

	t.Run("discrepancies", func(t *testing.T) {
		var amountDiff, missing *Discrepancy
		for _, d := range result.Discrepancies {
			switch d.Type {
			case DiscrepancyAmountDifference:
				amountDiff = d
			case DiscrepancyMissingEntry:
				missing = d
			case DiscrepancyDateMismatch:
				t.Errorf("Unexpected date mismatch without strict matching: %+v", d)
			}
		}

		if amountDiff == nil || amountDiff.ItemID != "S3" || amountDiff.EntryID != "L3" {
			t.Fatalf("Expected amount difference on S3-L3, got %+v", amountDiff)
		}
		if !amountDiff.Amount.Equal(amount("1.50")) {
			t.Errorf("Expected difference 1.50, got %s", amountDiff.Amount)
		}
		if missing == nil || missing.ItemID != "S4" {
			t.Errorf("Expected missing entry for S4, got %+v", missing)
		}
	})

	t.Run("summary", func(t *testing.T) {
		s := result.Summary
		if s.TotalStatementItems != 5 || s.PendingStatementItems != 4 {
			t.Errorf("Unexpected item counts: total %d pending %d", s.TotalStatementItems, s.PendingStatementItems)
		}
		if s.TotalLedgerEntries != 5 || s.PendingLedgerEntries != 4 {
			t.Errorf("Unexpected entry counts: total %d pending %d", s.TotalLedgerEntries, s.PendingLedgerEntries)
		}
		if s.ItemsWithSuggestions != 3 {
			t.Errorf("Expected 3 items with suggestions, got %d", s.ItemsWithSuggestions)
		}
		if s.PerfectMatches != 2 || s.UnmatchedItems != 2 || s.UnmatchedEntries != 2 {
			t.Errorf("Unexpected match counts: %+v", s)
		}
		if !s.MatchedAmount.Equal(amount("2889.90")) {
			t.Errorf("Expected matched amount 2889.90, got %s", s.MatchedAmount)
		}
		if !s.UnmatchedItemsAmount.Equal(amount("695.00")) {
			t.Errorf("Expected unmatched items amount 695.00, got %s", s.UnmatchedItemsAmount)
		}
		if !s.UnmatchedEntriesAmount.Equal(amount("3848.50")) {
			t.Errorf("Expected unmatched entries amount 3848.50, got %s", s.UnmatchedEntriesAmount)
		}
		if s.MatchRate != 50 {
			t.Errorf("Expected match rate 50, got %f", s.MatchRate)
		}
		if s.BestConfidence["excellent"] != 1 || s.BestConfidence["good"] != 2 {
			t.Errorf("Unexpected confidence counts: %v", s.BestConfidence)
		}
	})

	t.Run("records untouched", func(t *testing.T) {
		for _, m := range result.PerfectMatches {
			if !m.Item.IsPending() || !m.Entry.IsPending() {
				t.Errorf("Run must not change status of %s-%s", m.Item.ID, m.Entry.ID)
			}
		}
	})
}

func TestRunStrictDates(t *testing.T) {
	service := createTestService(t, nil)
	opts := DefaultOptions()
	opts.StrictDateMatching = true

	result, err := service.Run(context.Background(), createTestDataset(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var mismatches []*Discrepancy
	for _, d := range result.Discrepancies {
		if d.Type == DiscrepancyDateMismatch {
			mismatches = append(mismatches, d)
		}
	}

	if len(mismatches) != 1 || mismatches[0].ItemID != "S2" || mismatches[0].EntryID != "L2" {
		t.Errorf("Expected one date mismatch on S2-L2, got %+v", mismatches)
	}
}

func TestRunDateFilter(t *testing.T) {
	service := createTestService(t, nil)
	start := date("2024-01-02")
	end := date("2024-01-03")

	opts := DefaultOptions()
	opts.StartDate = &start
	opts.EndDate = &end

	result, err := service.Run(context.Background(), createTestDataset(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Suggestions) != 2 {
		t.Errorf("Expected 2 ranked items in range, got %d", len(result.Suggestions))
	}
	if len(result.PerfectMatches) != 1 || result.PerfectMatches[0].Item.ID != "S2" {
		t.Errorf("Expected only S2 perfectly matched, got %d matches", len(result.PerfectMatches))
	}
	if result.Summary.TotalStatementItems != 5 {
		t.Errorf("Totals must cover the whole dataset, got %d", result.Summary.TotalStatementItems)
	}
	if result.Summary.PendingStatementItems != 2 || result.Summary.PendingLedgerEntries != 2 {
		t.Errorf("Unexpected pending counts in range: %+v", result.Summary)
	}
}

func TestRunItemSelection(t *testing.T) {
	service := createTestService(t, nil)

	t.Run("selected items only", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ItemIDs = []string{"S3"}

		result, err := service.Run(context.Background(), createTestDataset(), opts)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(result.Suggestions) != 1 || result.Suggestions[0].Item.ID != "S3" {
			t.Errorf("Expected only S3 ranked, got %d items", len(result.Suggestions))
		}
		if len(result.PerfectMatches) != 2 {
			t.Errorf("Perfect matching must consider every item, got %d matches", len(result.PerfectMatches))
		}
	})

	t.Run("non-pending item skipped", func(t *testing.T) {
		ds := createTestDataset()
		ds.StatementItems[0].Status = models.StatusReconciled

		opts := DefaultOptions()
		opts.ItemIDs = []string{"S1", "S3"}

		result, err := service.Run(context.Background(), ds, opts)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(result.Suggestions) != 1 || result.Suggestions[0].Item.ID != "S3" {
			t.Errorf("Expected only S3 ranked, got %d items", len(result.Suggestions))
		}
	})

	t.Run("item outside date range skipped", func(t *testing.T) {
		start := date("2024-01-02")
		end := date("2024-01-03")

		opts := DefaultOptions()
		opts.StartDate = &start
		opts.EndDate = &end
		opts.ItemIDs = []string{"S1", "S3"}

		result, err := service.Run(context.Background(), createTestDataset(), opts)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(result.Suggestions) != 1 || result.Suggestions[0].Item.ID != "S3" {
			t.Errorf("Expected only S3 ranked, got %d items", len(result.Suggestions))
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ItemIDs = []string{"S3", "S99"}

		_, err := service.Run(context.Background(), createTestDataset(), opts)
		if err == nil {
			t.Fatal("Expected error for unknown item")
		}
		if code := errorCode(t, err); code != recerrors.CodeUnknownItem {
			t.Errorf("Expected code %s, got %s", recerrors.CodeUnknownItem, code)
		}
	})
}

func TestRunSkips(t *testing.T) {
	service := createTestService(t, nil)

	opts := DefaultOptions()
	opts.SkipSuggestions = true
	result, err := service.Run(context.Background(), createTestDataset(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Suggestions) != 0 || len(result.PerfectMatches) != 2 {
		t.Errorf("Expected perfect matches only, got %d suggestions %d matches",
			len(result.Suggestions), len(result.PerfectMatches))
	}

	opts = DefaultOptions()
	opts.SkipPerfectMatches = true
	result, err = service.Run(context.Background(), createTestDataset(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.PerfectMatches) != 0 || len(result.UnmatchedItems) != 4 {
		t.Errorf("Expected every pending item unmatched, got %d matches %d unmatched",
			len(result.PerfectMatches), len(result.UnmatchedItems))
	}
}

func TestRunCancelled(t *testing.T) {
	service := createTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Run(ctx, createTestDataset(), nil)
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if code := errorCode(t, err); code != recerrors.CodeSessionCancelled {
		t.Errorf("Expected code %s, got %s", recerrors.CodeSessionCancelled, code)
	}
}

func TestRunInvalidDataset(t *testing.T) {
	service := createTestService(t, nil)

	if _, err := service.Run(context.Background(), nil, nil); err == nil {
		t.Error("Expected error for nil dataset")
	}

	ds := createTestDataset()
	ds.LedgerEntries = append(ds.LedgerEntries,
		models.NewLedgerEntry("L1", date("2024-01-01"), "duplicate", amount("1.00"), models.EntryIncome))

	_, err := service.Run(context.Background(), ds, nil)
	summary, ok := recerrors.AsErrorSummary(err)
	if !ok {
		t.Fatalf("Expected *ErrorSummary, got %T: %v", err, err)
	}
	if !summary.HasCode(recerrors.CodeDuplicateID) {
		t.Errorf("Expected duplicate id error, got %v", summary.ByCode)
	}
}

func TestDuplicateDiscrepancies(t *testing.T) {
	items := []*models.StatementItem{
		models.NewStatementItem("S1", date("2024-01-01"), "TARIFA", amount("-10.00"), models.MovementDebit),
		models.NewStatementItem("S2", date("2024-01-01"), "TARIFA", amount("-10.00"), models.MovementDebit),
		models.NewStatementItem("S3", date("2024-01-01"), "TARIFA", amount("10.00"), models.MovementCredit),
	}
	entries := []*models.LedgerEntry{
		models.NewLedgerEntry("L1", date("2024-01-01"), "Tarifa", amount("10.00"), models.EntryExpense),
		models.NewLedgerEntry("L2", date("2024-01-01"), "Tarifa", amount("10.00"), models.EntryExpense),
	}

	found := analyzeDiscrepancies(items, entries, nil, false)
	if len(found) != 2 {
		t.Fatalf("Expected 2 duplicates, got %d", len(found))
	}
	if found[0].Type != DiscrepancyDuplicateItem || found[0].ItemID != "S2" {
		t.Errorf("Expected duplicate statement item S2, got %+v", found[0])
	}
	if found[1].Type != DiscrepancyDuplicateEntry || found[1].EntryID != "L2" {
		t.Errorf("Expected duplicate ledger entry L2, got %+v", found[1])
	}
}

func TestSuggestFor(t *testing.T) {
	service := createTestService(t, nil)
	ds := createTestDataset()

	is, err := service.SuggestFor(context.Background(), ds, "S3")
	if err != nil {
		t.Fatalf("SuggestFor failed: %v", err)
	}
	best, ok := is.Best()
	if !ok || best.Entry.ID != "L3" {
		t.Errorf("Expected L3 as best suggestion for S3")
	}

	ds.StatementItems[0].Status = models.StatusReconciled
	is, err = service.SuggestFor(context.Background(), ds, "S1")
	if err != nil {
		t.Fatalf("SuggestFor failed: %v", err)
	}
	if len(is.Suggestions) != 0 {
		t.Errorf("Expected no suggestions for a reconciled item, got %d", len(is.Suggestions))
	}

	_, err = service.SuggestFor(context.Background(), ds, "missing")
	if err == nil {
		t.Fatal("Expected error for unknown item")
	}
	if code := errorCode(t, err); code != recerrors.CodeUnknownItem {
		t.Errorf("Expected code %s, got %s", recerrors.CodeUnknownItem, code)
	}
}
