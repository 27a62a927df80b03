// Package matcher implements the bank reconciliation matching engine.
//
// Given bank statement items and internal ledger entries, the engine
//   - ranks candidate ledger entries for a single statement item
//     (Suggest), and
//   - pairs statement items with ledger entries whose amounts are exactly
//     equal and whose dates are at most one day apart (PerfectMatches).
//
// Candidates are scored on three independent signals, each in 0..100:
// amount proximity (tolerance banded), date proximity (day distance banded)
// and description token overlap. The composite score is their weighted sum.
// Pairs whose movement types disagree (a credit against an expense, a debit
// against an income) are never considered.
//
// Every function in this package is pure: inputs are never mutated and no
// state is kept between calls, so an Engine can be shared across goroutines.
//
// Example usage:
//
//	days := 2
//	cfg, err := matcher.NewConfig(&matcher.Overrides{DateToleranceDays: &days})
//	if err != nil {
//		return err
//	}
//	engine, _ := matcher.NewEngine(cfg)
//	suggestions := engine.Suggest(item, entries)
//	pairs := engine.PerfectMatches(items, entries)
package matcher

import (
	"fmt"
	"math"

	recerrors "bank-reconciliation-engine/pkg/errors"
)

// AssignmentStrategy selects how PerfectMatches resolves competing candidates.
type AssignmentStrategy string

const (
	// AssignFirstFit walks statement items and ledger entries in input order
	// and takes the first acceptable entry for each item.
	AssignFirstFit AssignmentStrategy = "first-fit"

	// AssignClosestGap collects every acceptable pair first and assigns them
	// by ascending day gap, ties broken by input order. Acceptable pairs
	// already have equal amounts.
	AssignClosestGap AssignmentStrategy = "closest-gap"
)

// IsValid checks if the strategy is known
func (s AssignmentStrategy) IsValid() bool {
	return s == AssignFirstFit || s == AssignClosestGap
}

// Weights defines the relative importance of the three signals
type Weights struct {
	Value       float64 `json:"value"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Value + w.Date + w.Description
}

// Config holds the matching parameters. Use NewConfig or one of the presets;
// a Config built by hand must pass Validate before use.
type Config struct {
	// ValueTolerance is the relative amount difference (0.01 = 1%) that still
	// counts as a close value.
	ValueTolerance float64 `json:"value_tolerance"`

	// DateToleranceDays is the day distance that still counts as a close date.
	DateToleranceDays int `json:"date_tolerance_days"`

	Weights Weights `json:"weights"`

	// MinimumScore is the composite score a suggestion must reach.
	MinimumScore int `json:"minimum_score"`

	// MaxSuggestions caps the ranked list; 0 means no cap.
	MaxSuggestions int `json:"max_suggestions"`

	Assignment AssignmentStrategy `json:"assignment"`
}

const (
	// weightSumSlack is how far the weights may drift from 1.0
	weightSumSlack = 0.01

	maxValueTolerance    = 0.10
	maxDateToleranceDays = 14
)

// DefaultConfig returns the documented defaults: 1% value tolerance, 3 day
// date tolerance, weights 0.5/0.3/0.2 and a minimum score of 50.
func DefaultConfig() *Config {
	return &Config{
		ValueTolerance:    0.01,
		DateToleranceDays: 3,
		Weights: Weights{
			Value:       0.5,
			Date:        0.3,
			Description: 0.2,
		},
		MinimumScore:   50,
		MaxSuggestions: 0,
		Assignment:     AssignFirstFit,
	}
}

// StrictConfig returns a configuration for statements that settle quickly
// and carry reliable amounts.
func StrictConfig() *Config {
	return &Config{
		ValueTolerance:    0.005,
		DateToleranceDays: 1,
		Weights: Weights{
			Value:       0.6,
			Date:        0.3,
			Description: 0.1,
		},
		MinimumScore:   75,
		MaxSuggestions: 5,
		Assignment:     AssignFirstFit,
	}
}

// RelaxedConfig returns a configuration for exploratory matching of noisy
// statements.
func RelaxedConfig() *Config {
	return &Config{
		ValueTolerance:    0.03,
		DateToleranceDays: 5,
		Weights: Weights{
			Value:       0.4,
			Date:        0.3,
			Description: 0.3,
		},
		MinimumScore:   40,
		MaxSuggestions: 0,
		Assignment:     AssignClosestGap,
	}
}

// Overrides carries caller-supplied values; nil fields keep the default.
type Overrides struct {
	ValueTolerance    *float64
	DateToleranceDays *int
	ValueWeight       *float64
	DateWeight        *float64
	DescriptionWeight *float64
	MinimumScore      *int
	MaxSuggestions    *int
	Assignment        *AssignmentStrategy
}

// NewConfig merges overrides over DefaultConfig and validates the result.
// A nil overrides value yields the defaults.
func NewConfig(overrides *Overrides) (*Config, error) {
	return Merge(DefaultConfig(), overrides)
}

// Merge applies overrides on a copy of base and validates the result. The
// base config is not modified.
func Merge(base *Config, overrides *Overrides) (*Config, error) {
	if base == nil {
		base = DefaultConfig()
	}
	cfg := base.Clone()

	if overrides != nil {
		if overrides.ValueTolerance != nil {
			cfg.ValueTolerance = *overrides.ValueTolerance
		}
		if overrides.DateToleranceDays != nil {
			cfg.DateToleranceDays = *overrides.DateToleranceDays
		}
		if overrides.ValueWeight != nil {
			cfg.Weights.Value = *overrides.ValueWeight
		}
		if overrides.DateWeight != nil {
			cfg.Weights.Date = *overrides.DateWeight
		}
		if overrides.DescriptionWeight != nil {
			cfg.Weights.Description = *overrides.DescriptionWeight
		}
		if overrides.MinimumScore != nil {
			cfg.MinimumScore = *overrides.MinimumScore
		}
		if overrides.MaxSuggestions != nil {
			cfg.MaxSuggestions = *overrides.MaxSuggestions
		}
		if overrides.Assignment != nil {
			cfg.Assignment = *overrides.Assignment
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and returns a configuration error
// describing the first invalid setting.
func (c *Config) Validate() error {
	if math.IsNaN(c.ValueTolerance) || c.ValueTolerance <= 0 || c.ValueTolerance > maxValueTolerance {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "value_tolerance", c.ValueTolerance,
			fmt.Errorf("value tolerance must be in (0, %.2f]", maxValueTolerance))
	}

	if c.DateToleranceDays <= 0 || c.DateToleranceDays > maxDateToleranceDays {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "date_tolerance_days", c.DateToleranceDays,
			fmt.Errorf("date tolerance must be between 1 and %d days", maxDateToleranceDays))
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	if c.MinimumScore < 0 || c.MinimumScore > 100 {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "minimum_score", c.MinimumScore,
			fmt.Errorf("minimum score must be between 0 and 100"))
	}

	if c.MaxSuggestions < 0 {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "max_suggestions", c.MaxSuggestions,
			fmt.Errorf("max suggestions cannot be negative"))
	}

	if !c.Assignment.IsValid() {
		return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, "assignment", c.Assignment,
			fmt.Errorf("assignment must be %q or %q", AssignFirstFit, AssignClosestGap))
	}

	return nil
}

// Validate checks that every weight is in [0, 1] and that together they sum
// to 1.0 within a small slack.
func (w Weights) Validate() error {
	named := []struct {
		setting string
		value   float64
	}{
		{"weights.value", w.Value},
		{"weights.date", w.Date},
		{"weights.description", w.Description},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 || n.value > 1 {
			return recerrors.ConfigurationError(recerrors.CodeInvalidConfig, n.setting, n.value,
				fmt.Errorf("weight must be between 0.0 and 1.0"))
		}
	}

	if total := w.Sum(); math.Abs(total-1.0) > weightSumSlack {
		return recerrors.ConfigurationError(recerrors.CodeConfigConflict, "weights", total,
			fmt.Errorf("weights must sum to 1.0, got %.4f", total))
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{ValueTolerance: %.2f%%, DateTolerance: %d days, Weights: %.2f/%.2f/%.2f, MinScore: %d, Assignment: %s}",
		c.ValueTolerance*100, c.DateToleranceDays,
		c.Weights.Value, c.Weights.Date, c.Weights.Description,
		c.MinimumScore, c.Assignment)
}
