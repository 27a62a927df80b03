package matcher

import (
	"bank-reconciliation-engine/internal/models"
)

// Engine scores and pairs statement items against ledger entries with a
// fixed, validated configuration. It holds no other state and is safe for
// concurrent use.
type Engine struct {
	config *Config
}

// MatchSuggestion is one ranked candidate for a statement item.
type MatchSuggestion struct {
	Entry     *models.LedgerEntry `json:"entry"`
	Score     int                 `json:"score"`
	Reasons   []string            `json:"reasons"`
	Breakdown Breakdown           `json:"breakdown"`
}

// Confidence returns the qualitative tier of the suggestion's score
func (s MatchSuggestion) Confidence() Confidence {
	return ConfidenceFor(s.Score)
}

// PerfectMatchPair is a statement item and ledger entry eligible for
// unattended reconciliation.
type PerfectMatchPair struct {
	Item  *models.StatementItem `json:"item"`
	Entry *models.LedgerEntry   `json:"entry"`
}

// NewEngine creates an engine. A nil config selects DefaultConfig. The
// config is validated and copied, so later changes to it have no effect.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Engine{config: config.Clone()}, nil
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Score scores a single pair. The boolean is false when the movement types
// are incompatible, in which case the pair must not be proposed at all.
// Status is not checked here.
func (e *Engine) Score(item *models.StatementItem, entry *models.LedgerEntry) (MatchSuggestion, bool) {
	return ScorePair(item, entry, e.config)
}

// ScorePair scores a pair under the given configuration.
func ScorePair(item *models.StatementItem, entry *models.LedgerEntry, config *Config) (MatchSuggestion, bool) {
	if !Compatible(item.Type, entry.Type) {
		return MatchSuggestion{}, false
	}

	breakdown := Breakdown{
		Value:       ValueScore(item.Amount, entry.Amount, config.ValueTolerance),
		Date:        DateScore(item.Date, entry.Date, config.DateToleranceDays),
		Description: DescriptionScore(item.Description, entry.Description),
	}

	return MatchSuggestion{
		Entry:     entry,
		Score:     Composite(breakdown, config.Weights),
		Reasons:   Reasons(breakdown),
		Breakdown: breakdown,
	}, true
}
