// Package reporter renders reconciliation session results.
//
// Supported output formats:
//   - Console: aligned tables for terminal display
//   - JSON: the full result for programmatic consumption
//   - CSV: one row per suggestion, perfect match and unmatched record
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/reconciler"
	recerrors "bank-reconciliation-engine/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeSuggestions     bool `json:"include_suggestions"`
	IncludePerfectMatches  bool `json:"include_perfect_matches"`
	IncludeUnmatched       bool `json:"include_unmatched"`
	IncludeDiscrepancies   bool `json:"include_discrepancies"`
	IncludeProcessingStats bool `json:"include_processing_stats"`

	// IncludeBreakdown adds the value, date and description scores of every
	// suggestion.
	IncludeBreakdown bool `json:"include_breakdown"`

	// MaxSuggestionsShown limits suggestions printed per item; 0 shows all.
	MaxSuggestionsShown int `json:"max_suggestions_shown"`

	// Console formatting options
	DescriptionWidth int `json:"description_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// SortByAmount orders unmatched records by descending amount
	SortByAmount bool `json:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeSuggestions:     true,
		IncludePerfectMatches:  true,
		IncludeUnmatched:       true,
		IncludeDiscrepancies:   true,
		IncludeProcessingStats: true,
		IncludeBreakdown:       false,
		MaxSuggestionsShown:    3,
		DescriptionWidth:       40,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
		SortByAmount:           false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "output_format", c.Format,
			fmt.Errorf("supported formats are console, json and csv"))
	}

	if c.DescriptionWidth < 10 {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "description_width", c.DescriptionWidth,
			fmt.Errorf("description width must be at least 10 characters"))
	}

	if c.MaxSuggestionsShown < 0 {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "max_suggestions_shown", c.MaxSuggestionsShown,
			fmt.Errorf("max suggestions shown cannot be negative"))
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r') {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "csv_delimiter", string(c.CSVDelimiter),
			fmt.Errorf("invalid CSV delimiter"))
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes a report of the result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return recerrors.ValidationError(recerrors.CodeMissingField, "result", nil, nil)
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "output_format", rg.config.Format, nil)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "RECONCILIATION REPORT\n")
	fmt.Fprintf(tw, "Run:\t%s\n", result.RunID)
	fmt.Fprintf(tw, "Source:\t%s\n", result.Source)
	fmt.Fprintf(tw, "Generated:\t%s\n", result.ProcessedAt.Format(time.RFC3339))
	if result.Config != nil {
		fmt.Fprintf(tw, "Matcher:\t%s\n", result.Config.String())
	}
	fmt.Fprintf(tw, "\n")

	if result.Summary != nil {
		fmt.Fprintf(tw, "=== SUMMARY ===\n")
		rg.printSummary(result.Summary, tw)
		fmt.Fprintf(tw, "\n")
	}

	if rg.config.IncludePerfectMatches && len(result.PerfectMatches) > 0 {
		fmt.Fprintf(tw, "=== PERFECT MATCHES ===\n")
		rg.printPerfectMatches(result.PerfectMatches, tw)
		fmt.Fprintf(tw, "\n")
	}

	if rg.config.IncludeSuggestions && len(result.Suggestions) > 0 {
		fmt.Fprintf(tw, "=== SUGGESTIONS ===\n")
		rg.printSuggestions(result.Suggestions, tw)
		fmt.Fprintf(tw, "\n")
	}

	if rg.config.IncludeUnmatched {
		if len(result.UnmatchedItems) > 0 {
			fmt.Fprintf(tw, "=== UNMATCHED STATEMENT ITEMS ===\n")
			rg.printUnmatchedItems(result.UnmatchedItems, tw)
			fmt.Fprintf(tw, "\n")
		}
		if len(result.UnmatchedEntries) > 0 {
			fmt.Fprintf(tw, "=== UNMATCHED LEDGER ENTRIES ===\n")
			rg.printUnmatchedEntries(result.UnmatchedEntries, tw)
			fmt.Fprintf(tw, "\n")
		}
	}

	if rg.config.IncludeDiscrepancies && len(result.Discrepancies) > 0 {
		fmt.Fprintf(tw, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(result.Discrepancies, tw)
		fmt.Fprintf(tw, "\n")
	}

	if rg.config.IncludeProcessingStats && result.Stats != nil {
		fmt.Fprintf(tw, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.Stats, tw)
	}

	return tw.Flush()
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result))
}

var csvHeaders = []string{
	"Record",
	"Statement_ID",
	"Ledger_ID",
	"Date",
	"Amount",
	"Type",
	"Description",
	"Score",
	"Confidence",
	"Divergence",
	"Notes",
}

// generateCSVReport generates a CSV report with one row per record of interest
func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	var records [][]string

	if rg.config.IncludePerfectMatches {
		for _, m := range result.PerfectMatches {
			records = append(records, []string{
				"Perfect Match",
				m.Item.ID,
				m.Entry.ID,
				m.Item.Date.Format(models.DateLayout),
				models.FormatAmount(m.Item.Amount),
				string(m.Item.Type),
				m.Item.Description,
				"",
				"",
				models.FormatAmount(m.Divergence),
				fmt.Sprintf("day gap %d", m.DayGap),
			})
		}
	}

	if rg.config.IncludeSuggestions {
		for _, is := range result.Suggestions {
			for _, s := range rg.limitSuggestions(is.Suggestions) {
				records = append(records, []string{
					"Suggestion",
					is.Item.ID,
					s.Entry.ID,
					s.Entry.Date.Format(models.DateLayout),
					models.FormatAmount(s.Entry.Amount),
					string(s.Entry.Type),
					s.Entry.Description,
					strconv.Itoa(s.Score),
					s.Confidence().String(),
					models.FormatAmount(models.Divergence(is.Item, s.Entry)),
					strings.Join(s.Reasons, "; "),
				})
			}
		}
	}

	if rg.config.IncludeUnmatched {
		for _, item := range rg.sortedItems(result.UnmatchedItems) {
			records = append(records, []string{
				"Unmatched Statement Item",
				item.ID,
				"",
				item.Date.Format(models.DateLayout),
				models.FormatAmount(item.Amount),
				string(item.Type),
				item.Description,
				"", "", "",
				"No perfect ledger entry found",
			})
		}
		for _, entry := range rg.sortedEntries(result.UnmatchedEntries) {
			records = append(records, []string{
				"Unmatched Ledger Entry",
				"",
				entry.ID,
				entry.Date.Format(models.DateLayout),
				models.FormatAmount(entry.Amount),
				string(entry.Type),
				entry.Description,
				"", "", "",
				"No perfect statement item found",
			})
		}
	}

	if err := csvWriter.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}

	return nil
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(summary *reconciler.Summary, w io.Writer) {
	fmt.Fprintf(w, "\tTotal\tPending\tUnmatched\n")
	fmt.Fprintf(w, "Statement items\t%d\t%d\t%d\n",
		summary.TotalStatementItems, summary.PendingStatementItems, summary.UnmatchedItems)
	fmt.Fprintf(w, "Ledger entries\t%d\t%d\t%d\n",
		summary.TotalLedgerEntries, summary.PendingLedgerEntries, summary.UnmatchedEntries)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Perfect matches:\t%d (%.1f%%)\n", summary.PerfectMatches, summary.MatchRate)
	fmt.Fprintf(w, "Items with suggestions:\t%d\n", summary.ItemsWithSuggestions)
	fmt.Fprintf(w, "Total suggestions:\t%d\n", summary.TotalSuggestions)
	fmt.Fprintf(w, "Matched amount:\t%s\n", models.FormatAmount(summary.MatchedAmount))
	fmt.Fprintf(w, "Unmatched statement amount:\t%s\n", models.FormatAmount(summary.UnmatchedItemsAmount))
	fmt.Fprintf(w, "Unmatched ledger amount:\t%s\n", models.FormatAmount(summary.UnmatchedEntriesAmount))

	if len(summary.BestConfidence) > 0 {
		fmt.Fprintf(w, "\nBest suggestion confidence:\n")
		for _, tier := range []string{"excellent", "good", "fair", "poor"} {
			fmt.Fprintf(w, "  %s\t%d (%.1f%%)\n", tier, summary.BestConfidence[tier],
				calculatePercentage(summary.BestConfidence[tier], summary.ItemsWithSuggestions))
		}
	}
}

func (rg *ReportGenerator) printPerfectMatches(matches []*reconciler.PerfectMatch, w io.Writer) {
	fmt.Fprintf(w, "STATEMENT\tLEDGER\tDATE\tAMOUNT\tDAY GAP\tDIVERGENCE\n")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.Item.ID,
			m.Entry.ID,
			m.Item.Date.Format(models.DateLayout),
			models.FormatAmount(m.Item.Amount),
			m.DayGap,
			models.FormatAmount(m.Divergence))
	}
}

func (rg *ReportGenerator) printSuggestions(ranked []*reconciler.ItemSuggestions, w io.Writer) {
	for _, is := range ranked {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			is.Item.ID,
			is.Item.Date.Format(models.DateLayout),
			models.FormatAmount(is.Item.Amount),
			rg.truncate(is.Item.Description))

		if len(is.Suggestions) == 0 {
			fmt.Fprintf(w, "  (no suggestions)\n")
			continue
		}

		shown := rg.limitSuggestions(is.Suggestions)
		for i, s := range shown {
			fmt.Fprintf(w, "  %d. %s\t%s\t%s\t%s\tscore %d (%s)\n",
				i+1,
				s.Entry.ID,
				s.Entry.Date.Format(models.DateLayout),
				models.FormatAmount(s.Entry.Amount),
				rg.truncate(s.Entry.Description),
				s.Score,
				s.Confidence())
			if rg.config.IncludeBreakdown {
				fmt.Fprintf(w, "  \tvalue %d, date %d, description %d\n",
					s.Breakdown.Value, s.Breakdown.Date, s.Breakdown.Description)
			}
			if len(s.Reasons) > 0 {
				fmt.Fprintf(w, "  \t%s\n", strings.Join(s.Reasons, "; "))
			}
		}

		if hidden := len(is.Suggestions) - len(shown); hidden > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", hidden)
		}
	}
}

func (rg *ReportGenerator) printUnmatchedItems(items []*models.StatementItem, w io.Writer) {
	fmt.Fprintf(w, "ID\tDATE\tAMOUNT\tTYPE\tDESCRIPTION\n")
	for _, item := range rg.sortedItems(items) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Date.Format(models.DateLayout),
			models.FormatAmount(item.Amount),
			item.Type,
			rg.truncate(item.Description))
	}
}

func (rg *ReportGenerator) printUnmatchedEntries(entries []*models.LedgerEntry, w io.Writer) {
	fmt.Fprintf(w, "ID\tDATE\tAMOUNT\tTYPE\tDESCRIPTION\n")
	for _, entry := range rg.sortedEntries(entries) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.ID,
			entry.Date.Format(models.DateLayout),
			models.FormatAmount(entry.Amount),
			entry.Type,
			rg.truncate(entry.Description))
	}
}

func (rg *ReportGenerator) printDiscrepancies(discrepancies []*reconciler.Discrepancy, w io.Writer) {
	fmt.Fprintf(w, "Total Discrepancies Found: %d\n\n", len(discrepancies))

	severityGroups := make(map[reconciler.Severity][]*reconciler.Discrepancy)
	for _, disc := range discrepancies {
		severityGroups[disc.Severity] = append(severityGroups[disc.Severity], disc)
	}

	severities := []reconciler.Severity{
		reconciler.SeverityCritical,
		reconciler.SeverityHigh,
		reconciler.SeverityMedium,
		reconciler.SeverityLow,
	}

	for _, severity := range severities {
		discs := severityGroups[severity]
		if len(discs) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s Severity (%d):\n", strings.ToUpper(string(severity)), len(discs))
		for _, disc := range discs {
			fmt.Fprintf(w, "  - %s: %s", disc.Type, disc.Description)
			if !disc.Amount.IsZero() {
				fmt.Fprintf(w, " (Amount: %s)", models.FormatAmount(disc.Amount))
			}
			fmt.Fprintf(w, "\n")
		}
		fmt.Fprintf(w, "\n")
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, w io.Writer) {
	fmt.Fprintf(w, "Ranking time:\t%v\n", stats.RankingTime)
	fmt.Fprintf(w, "Matching time:\t%v\n", stats.MatchingTime)
	fmt.Fprintf(w, "Total processing:\t%v\n", stats.TotalTime)
	fmt.Fprintf(w, "Items/second:\t%.2f\n", stats.ItemsPerSecond)
}

// Helper methods

func (rg *ReportGenerator) limitSuggestions(suggestions []matcher.MatchSuggestion) []matcher.MatchSuggestion {
	if rg.config.MaxSuggestionsShown > 0 && len(suggestions) > rg.config.MaxSuggestionsShown {
		return suggestions[:rg.config.MaxSuggestionsShown]
	}
	return suggestions
}

func (rg *ReportGenerator) truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= rg.config.DescriptionWidth {
		return s
	}
	return string(runes[:rg.config.DescriptionWidth-3]) + "..."
}

// sortedItems returns items ordered by descending absolute amount when
// SortByAmount is set. The input slice is never reordered.
func (rg *ReportGenerator) sortedItems(items []*models.StatementItem) []*models.StatementItem {
	if !rg.config.SortByAmount {
		return items
	}
	sorted := append([]*models.StatementItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.Abs().GreaterThan(sorted[j].Amount.Abs())
	})
	return sorted
}

func (rg *ReportGenerator) sortedEntries(entries []*models.LedgerEntry) []*models.LedgerEntry {
	if !rg.config.SortByAmount {
		return entries
	}
	sorted := append([]*models.LedgerEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.GreaterThan(sorted[j].Amount)
	})
	return sorted
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":       result.RunID,
		"source":       result.Source,
		"processed_at": result.ProcessedAt,
		"config":       result.Config,
		"summary":      result.Summary,
	}

	if rg.config.IncludeSuggestions {
		output["suggestions"] = result.Suggestions
	}

	if rg.config.IncludePerfectMatches {
		output["perfect_matches"] = result.PerfectMatches
	}

	if rg.config.IncludeUnmatched {
		output["unmatched_items"] = rg.sortedItems(result.UnmatchedItems)
		output["unmatched_entries"] = rg.sortedEntries(result.UnmatchedEntries)
	}

	if rg.config.IncludeDiscrepancies {
		output["discrepancies"] = result.Discrepancies
	}

	if rg.config.IncludeProcessingStats && result.Stats != nil {
		output["processing_stats"] = result.Stats
	}

	return output
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
