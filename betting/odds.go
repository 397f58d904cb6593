// Package betting holds the pure wager math: American odds conversion,
// payout rounding and grading of a wager against a final score.
package betting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places money and odds are stored with
const MoneyPlaces = 2

// MultiplierPrecision is the number of places a non-terminating multiplier is carried to
const MultiplierPrecision = 16

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	cent    = decimal.New(1, -MoneyPlaces)
)

// HasMoneyPrecision reports whether d fits in two decimal places
func HasMoneyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// ValidateOdds checks that an American quote is usable for pricing
func ValidateOdds(odds decimal.Decimal) error {
	if odds.IsZero() {
		return ErrInvalidOdds
	}
	if !HasMoneyPrecision(odds) {
		return fmt.Errorf("odds %s: %w", odds, ErrTooPrecise)
	}
	return nil
}

// DecimalMultiplier converts an American quote to the factor applied to a stake
// to get the total return.
//
//	+150 -> 2.5
//	-110 -> 1.9090909090909091
func DecimalMultiplier(odds decimal.Decimal) (decimal.Decimal, error) {
	if odds.IsZero() {
		return decimal.Zero, ErrInvalidOdds
	}
	if odds.IsPositive() {
		return odds.Div(hundred).Add(one), nil
	}
	return hundred.DivRound(odds.Abs(), MultiplierPrecision).Add(one), nil
}
