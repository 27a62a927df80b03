package matcher

import (
	"math"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// valueCeiling is the relative difference beyond which amounts score 0.
	valueCeiling = 0.20

	weekDays      = 7
	fortnightDays = 14
)

// ValueScore scores how close two amounts are, in 0..100. Amounts are
// compared by magnitude. With d = |a-b| / max(a,b):
//
//	d = 0                    100
//	d <= tol                 100 -> 70, linear
//	d <= 2*tol               70 -> 30, linear
//	d <= 0.20                30 - (d - 2*tol)*100, floored at 0
//	otherwise                0
func ValueScore(a, b decimal.Decimal, tolerance float64) int {
	a, b = NormalizeAmount(a), NormalizeAmount(b)
	if a.Equal(b) {
		return 100
	}

	d := a.Sub(b).Abs().Div(decimal.Max(a, b)).InexactFloat64()

	var score float64
	switch {
	case d <= tolerance:
		score = 100 - (d/tolerance)*30
	case d <= 2*tolerance:
		score = 70 - ((d-tolerance)/tolerance)*40
	case d <= valueCeiling:
		score = 30 - (d-2*tolerance)*100
	default:
		score = 0
	}

	return roundScore(score)
}

// DateScore scores how close two calendar dates are, in 0..100, from the
// absolute day distance:
//
//	0 days                   100
//	<= tol                   100 -> 50, linear
//	<= 2*tol                 50 -> 20, linear
//	<= 7                     20
//	<= 14                    10
//	otherwise                0
func DateScore(a, b time.Time, toleranceDays int) int {
	delta := DayDistance(a, b)
	tol := float64(toleranceDays)

	var score float64
	switch {
	case delta == 0:
		score = 100
	case delta <= toleranceDays:
		score = 100 - (float64(delta)/tol)*50
	case delta <= 2*toleranceDays:
		score = 50 - (float64(delta-toleranceDays)/tol)*30
	case delta <= weekDays:
		score = 20
	case delta <= fortnightDays:
		score = 10
	default:
		score = 0
	}

	return roundScore(score)
}

// DescriptionScore scores the token overlap of two descriptions, in 0..100.
// A token of a counts as matched when some token of b contains it or is
// contained by it. The match count is divided by the longer token list.
func DescriptionScore(a, b string) int {
	tokensA := NormalizeDescription(a)
	tokensB := NormalizeDescription(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matches := 0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			if strings.Contains(tb, ta) || strings.Contains(ta, tb) {
				matches++
				break
			}
		}
	}

	longest := len(tokensA)
	if len(tokensB) > longest {
		longest = len(tokensB)
	}

	return roundScore(100 * float64(matches) / float64(longest))
}

// DayDistance returns the absolute number of calendar days between a and b,
// ignoring the time of day.
func DayDistance(a, b time.Time) int {
	diff := models.CalendarDate(a).Sub(models.CalendarDate(b))
	days := int(math.Round(diff.Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}

// roundScore rounds half away from zero and clamps into 0..100.
func roundScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
