// Package reconciler runs reconciliation sessions: it feeds a loaded dataset
// through the matching engine and assembles everything a reviewer needs
// into one Result.
//
// A session run
//  1. validates the dataset and the run options,
//  2. optionally narrows both collections to a date range,
//  3. ranks suggestions for every pending statement item,
//  4. pairs perfect matches for unattended confirmation,
//  5. lists what stayed unmatched and flags discrepancies,
//  6. summarises counts, amounts and suggestion confidence.
//
// Runs never change record status; confirming pairs is left to the caller.
//
// Example usage:
//
//	service, err := reconciler.NewService(matcher.DefaultConfig(), log)
//	if err != nil {
//		return err
//	}
//	result, err := service.Run(ctx, ds, reconciler.DefaultOptions())
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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service runs reconciliation sessions with a fixed matcher configuration.
// It keeps no per-run state and can serve concurrent runs.
type Service struct {
	engine *matcher.Engine
	logger logger.Logger
}

// Options tune a single run
type Options struct {
	// StartDate and EndDate, when set, restrict both collections to records
	// dated inside the closed range.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// ItemIDs restricts suggestion ranking to these statement items. Ids that
	// are not pending or fall outside the date range are skipped; unknown ids
	// are an error. Perfect matching still considers every item.
	ItemIDs []string `json:"item_ids,omitempty"`

	SkipSuggestions    bool `json:"skip_suggestions"`
	SkipPerfectMatches bool `json:"skip_perfect_matches"`

	// StrictDateMatching flags best suggestions dated on another day.
	StrictDateMatching bool `json:"strict_date_matching"`

	// ProgressInterval is how often progress is logged while ranking.
	ProgressInterval time.Duration `json:"progress_interval"`
}

// DefaultOptions returns options for a full run over the whole dataset
func DefaultOptions() *Options {
	return &Options{
		ProgressInterval: 5 * time.Second,
	}
}

// Validate checks the options are consistent
func (o *Options) Validate() error {
	if o.StartDate != nil && o.EndDate != nil && o.StartDate.After(*o.EndDate) {
		return recerrors.ConfigurationError(recerrors.CodeConfigConflict, "date_range",
			fmt.Sprintf("%s..%s", o.StartDate.Format(models.DateLayout), o.EndDate.Format(models.DateLayout)),
			fmt.Errorf("start date must not be after end date"))
	}

	if o.SkipSuggestions && o.SkipPerfectMatches {
		return recerrors.ConfigurationError(recerrors.CodeConfigConflict, "skip", "suggestions and perfect matches",
			fmt.Errorf("a run must produce suggestions, perfect matches or both"))
	}

	if o.ProgressInterval < 0 {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "progress_interval", o.ProgressInterval,
			fmt.Errorf("progress interval cannot be negative"))
	}

	return nil
}

// Result is the outcome of one run
type Result struct {
	RunID       string          `json:"run_id"`
	ProcessedAt time.Time       `json:"processed_at"`
	Source      string          `json:"source"`
	Config      *matcher.Config `json:"config"`

	Suggestions      []*ItemSuggestions      `json:"suggestions"`
	PerfectMatches   []*PerfectMatch         `json:"perfect_matches"`
	UnmatchedItems   []*models.StatementItem `json:"unmatched_items"`
	UnmatchedEntries []*models.LedgerEntry   `json:"unmatched_entries"`
	Discrepancies    []*Discrepancy          `json:"discrepancies"`

	Summary *Summary         `json:"summary"`
	Stats   *ProcessingStats `json:"processing_stats"`
}

// ItemSuggestions holds the ranked candidates of one statement item
type ItemSuggestions struct {
	Item        *models.StatementItem     `json:"item"`
	Suggestions []matcher.MatchSuggestion `json:"suggestions"`
}

// Best returns the top-ranked suggestion, if any
func (is *ItemSuggestions) Best() (matcher.MatchSuggestion, bool) {
	if len(is.Suggestions) == 0 {
		return matcher.MatchSuggestion{}, false
	}
	return is.Suggestions[0], true
}

// PerfectMatch is a perfect pair with the values stored on confirmation
type PerfectMatch struct {
	Item       *models.StatementItem `json:"item"`
	Entry      *models.LedgerEntry   `json:"entry"`
	Divergence decimal.Decimal       `json:"divergence"`
	DayGap     int                   `json:"day_gap"`
}

// Summary provides a high-level overview of a run
type Summary struct {
	TotalStatementItems   int `json:"total_statement_items"`
	PendingStatementItems int `json:"pending_statement_items"`
	TotalLedgerEntries    int `json:"total_ledger_entries"`
	PendingLedgerEntries  int `json:"pending_ledger_entries"`

	ItemsWithSuggestions int `json:"items_with_suggestions"`
	TotalSuggestions     int `json:"total_suggestions"`
	PerfectMatches       int `json:"perfect_matches"`
	UnmatchedItems       int `json:"unmatched_items"`
	UnmatchedEntries     int `json:"unmatched_entries"`

	// BestConfidence counts items by the tier of their best suggestion
	BestConfidence map[string]int `json:"best_confidence"`

	MatchedAmount          decimal.Decimal `json:"matched_amount"`
	UnmatchedItemsAmount   decimal.Decimal `json:"unmatched_items_amount"`
	UnmatchedEntriesAmount decimal.Decimal `json:"unmatched_entries_amount"`

	// MatchRate is the percentage of pending statement items perfectly matched
	MatchRate float64 `json:"match_rate"`
}

// ProcessingStats holds timings of a run
type ProcessingStats struct {
	RankingTime    time.Duration `json:"ranking_time"`
	MatchingTime   time.Duration `json:"matching_time"`
	TotalTime      time.Duration `json:"total_time"`
	ItemsPerSecond float64       `json:"items_per_second"`
}

// NewService creates a Service. A nil config selects matcher.DefaultConfig
// and a nil log the global logger.
func NewService(config *matcher.Config, log logger.Logger) (*Service, error) {
	engine, err := matcher.NewEngine(config)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	log = log.WithComponent("reconciler")
	log.WithField("config", engine.Config().String()).Debug("Created reconciliation service")

	return &Service{engine: engine, logger: log}, nil
}

// Engine returns the matching engine used by the service
func (s *Service) Engine() *matcher.Engine {
	return s.engine
}

// Run reconciles the dataset. A nil opts selects DefaultOptions. Cancelling
// ctx stops the run between statement items with a session cancelled error.
func (s *Service) Run(ctx context.Context, ds *dataset.Dataset, opts *Options) (*Result, error) {
	if ds == nil {
		return nil, recerrors.ValidationError(recerrors.CodeMissingField, "dataset", nil, nil)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.WithField("run_id", runID)
	op := logger.NewOperationLogger("reconcile", log)

	items, entries := filterByDate(ds.StatementItems, ds.LedgerEntries, opts.StartDate, opts.EndDate)
	op.Step("filter", logger.Fields{
		"statement_items": len(items),
		"ledger_entries":  len(entries),
	})

	result := &Result{
		RunID:            runID,
		ProcessedAt:      start.UTC(),
		Source:           ds.Source,
		Config:           s.engine.Config(),
		Suggestions:      make([]*ItemSuggestions, 0),
		PerfectMatches:   make([]*PerfectMatch, 0),
		UnmatchedItems:   make([]*models.StatementItem, 0),
		UnmatchedEntries: make([]*models.LedgerEntry, 0),
		Discrepancies:    make([]*Discrepancy, 0),
		Stats:            &ProcessingStats{},
	}

	if !opts.SkipSuggestions {
		rankStart := time.Now()
		suggestions, err := s.rankSuggestions(ctx, log, ds.StatementItems, items, entries, opts)
		if err != nil {
			op.Error(err, "Suggestion ranking failed")
			return nil, err
		}
		result.Suggestions = suggestions
		result.Stats.RankingTime = time.Since(rankStart)
		op.Step("rank", logger.Fields{"items_ranked": len(suggestions)})
	}

	if !opts.SkipPerfectMatches {
		if err := ctx.Err(); err != nil {
			cancelled := recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "perfect matching", err)
			op.Error(cancelled, "Reconciliation cancelled")
			return nil, cancelled
		}
		matchStart := time.Now()
		result.PerfectMatches = s.perfectMatches(items, entries)
		result.Stats.MatchingTime = time.Since(matchStart)
		op.Step("match", logger.Fields{"perfect_matches": len(result.PerfectMatches)})
	}

	result.UnmatchedItems, result.UnmatchedEntries = collectUnmatched(items, entries, result.PerfectMatches)
	result.Discrepancies = analyzeDiscrepancies(items, entries, result.Suggestions, opts.StrictDateMatching)
	result.Summary = buildSummary(ds, items, entries, result)

	result.Stats.TotalTime = time.Since(start)
	if seconds := result.Stats.TotalTime.Seconds(); seconds > 0 {
		result.Stats.ItemsPerSecond = float64(len(items)) / seconds
	}

	op.Success("Reconciliation completed", logger.Fields{
		"perfect_matches":   result.Summary.PerfectMatches,
		"unmatched_items":   result.Summary.UnmatchedItems,
		"unmatched_entries": result.Summary.UnmatchedEntries,
		"discrepancies":     len(result.Discrepancies),
	})

	return result, nil
}

// SuggestFor ranks suggestions for a single statement item of the dataset.
// An item that is not pending gets an empty suggestion list.
func (s *Service) SuggestFor(ctx context.Context, ds *dataset.Dataset, itemID string) (*ItemSuggestions, error) {
	if ds == nil {
		return nil, recerrors.ValidationError(recerrors.CodeMissingField, "dataset", nil, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, recerrors.ReconciliationError(recerrors.CodeSessionCancelled, "suggestion ranking", err)
	}

	item, ok := ds.StatementItem(itemID)
	if !ok {
		return nil, recerrors.ReconciliationError(recerrors.CodeUnknownItem, itemID, nil).
			WithContext("item_id", itemID)
	}

	suggestions := s.engine.Suggest(item, ds.LedgerEntries)
	s.logger.WithFields(logger.Fields{
		"item_id":     itemID,
		"status":      item.Status.String(),
		"suggestions": len(suggestions),
	}).Debug("Ranked suggestions for statement item")

	return &ItemSuggestions{Item: item, Suggestions: suggestions}, nil
}
