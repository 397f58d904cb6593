package betting

import "errors"

var (
	// ErrInvalidOdds is returned for a zero American quote
	ErrInvalidOdds = errors.New("invalid odds: american odds cannot be zero")

	// ErrTooPrecise is returned when an amount carries more than two decimal places
	ErrTooPrecise = errors.New("amount has more than two decimal places")

	// ErrInvalidStake is returned for a non-positive stake
	ErrInvalidStake = errors.New("stake must be positive")

	// ErrMissingLine is returned when a spread or totals bet has no line
	ErrMissingLine = errors.New("line is required for spread and totals bets")

	// ErrUnknownBetKind is returned for a bet kind outside the supported markets
	ErrUnknownBetKind = errors.New("unknown bet kind")
)
