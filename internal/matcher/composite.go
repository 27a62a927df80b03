package matcher

import "math"

// Reasons attached to a suggestion. Value and date reasons are tiered: the
// exact variant replaces the close one.
const (
	ReasonExactValue         = "exact value"
	ReasonCloseValue         = "close value"
	ReasonSameDate           = "same date"
	ReasonCloseDate          = "close date"
	ReasonSimilarDescription = "similar description"
	ReasonCompatibleType     = "compatible type"
)

const (
	closeSignalThreshold       = 70
	similarDescriptionMinScore = 50
)

// Breakdown holds the three signal scores of a pair.
type Breakdown struct {
	Value       int `json:"value"`
	Date        int `json:"date"`
	Description int `json:"description"`
}

// Composite combines the signal scores into a single 0..100 score.
func Composite(b Breakdown, w Weights) int {
	total := float64(b.Value)*w.Value +
		float64(b.Date)*w.Date +
		float64(b.Description)*w.Description
	// trim float noise so that totals landing on .5 round the same way
	return roundScore(math.Round(total*1e9) / 1e9)
}

// Reasons lists, in a fixed order, why a type-compatible pair scored well.
func Reasons(b Breakdown) []string {
	reasons := make([]string, 0, 4)

	switch {
	case b.Value == 100:
		reasons = append(reasons, ReasonExactValue)
	case b.Value >= closeSignalThreshold:
		reasons = append(reasons, ReasonCloseValue)
	}

	switch {
	case b.Date == 100:
		reasons = append(reasons, ReasonSameDate)
	case b.Date >= closeSignalThreshold:
		reasons = append(reasons, ReasonCloseDate)
	}

	if b.Description >= similarDescriptionMinScore {
		reasons = append(reasons, ReasonSimilarDescription)
	}

	return append(reasons, ReasonCompatibleType)
}

// Confidence is the qualitative tier of a composite score.
type Confidence int

const (
	ConfidencePoor Confidence = iota
	ConfidenceFair
	ConfidenceGood
	ConfidenceExcellent
)

// ConfidenceFor maps a composite score to its tier: excellent >= 90,
// good >= 75, fair >= 60, poor otherwise.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 90:
		return ConfidenceExcellent
	case score >= 75:
		return ConfidenceGood
	case score >= 60:
		return ConfidenceFair
	default:
		return ConfidencePoor
	}
}

// String returns the string representation of Confidence
func (c Confidence) String() string {
	switch c {
	case ConfidenceExcellent:
		return "excellent"
	case ConfidenceGood:
		return "good"
	case ConfidenceFair:
		return "fair"
	case ConfidencePoor:
		return "poor"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier by name
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
