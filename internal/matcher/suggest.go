package matcher

import (
	"sort"

	"bank-reconciliation-engine/internal/models"
)

// Suggest ranks the pending, type-compatible entries for one pending
// statement item; an item that is not pending gets no suggestions.
// Only suggestions scoring at least MinimumScore are kept. The result is
// sorted best-first; equal scores keep the order of entries. When
// MaxSuggestions is positive the list is truncated to that length. An empty
// result is an empty slice, never nil.
func (e *Engine) Suggest(item *models.StatementItem, entries []*models.LedgerEntry) []MatchSuggestion {
	return Suggest(item, entries, e.config)
}

// Suggest ranks entries for item under the given configuration.
func Suggest(item *models.StatementItem, entries []*models.LedgerEntry, config *Config) []MatchSuggestion {
	suggestions := make([]MatchSuggestion, 0)
	if item == nil || !item.IsPending() {
		return suggestions
	}

	for _, entry := range entries {
		if entry == nil || !entry.IsPending() {
			continue
		}

		suggestion, ok := ScorePair(item, entry, config)
		if !ok || suggestion.Score < config.MinimumScore {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if config.MaxSuggestions > 0 && len(suggestions) > config.MaxSuggestions {
		suggestions = suggestions[:config.MaxSuggestions]
	}

	return suggestions
}
