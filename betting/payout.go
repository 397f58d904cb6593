package betting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculatePayout returns the total return for a winning stake at the given
// American odds, rounded half-up to cents.
//
// The product stake*multiplier is evaluated as one exact fraction so the only
// rounding step is the final one.
func CalculatePayout(stake, odds decimal.Decimal) (decimal.Decimal, error) {
	if !stake.IsPositive() {
		return decimal.Zero, ErrInvalidStake
	}
	if !HasMoneyPrecision(stake) {
		return decimal.Zero, fmt.Errorf("stake %s: %w", stake, ErrTooPrecise)
	}
	if err := ValidateOdds(odds); err != nil {
		return decimal.Zero, err
	}

	var numerator, denominator decimal.Decimal
	if odds.IsPositive() {
		numerator = stake.Mul(odds.Add(hundred))
		denominator = hundred
	} else {
		abs := odds.Abs()
		numerator = stake.Mul(abs.Add(hundred))
		denominator = abs
	}

	return roundHalfUpDiv(numerator, denominator), nil
}

// roundHalfUpDiv divides two positive decimals and rounds half-up to cents
func roundHalfUpDiv(numerator, denominator decimal.Decimal) decimal.Decimal {
	quotient, remainder := numerator.QuoRem(denominator, MoneyPlaces)
	// remainder/denominator is the discarded fraction, in [0, 0.01)
	if remainder.Mul(two).GreaterThanOrEqual(denominator.Mul(cent)) {
		quotient = quotient.Add(cent)
	}
	return quotient
}
