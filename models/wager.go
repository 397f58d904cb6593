package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetKind is the market a wager was placed on
type BetKind string

const (
	BetKindSpreadHome    BetKind = "spread_home"
	BetKindSpreadAway    BetKind = "spread_away"
	BetKindMoneylineHome BetKind = "moneyline_home"
	BetKindMoneylineAway BetKind = "moneyline_away"
	BetKindOver          BetKind = "over"
	BetKindUnder         BetKind = "under"
)

// IsValid checks if the bet kind is one of the supported markets
func (k BetKind) IsValid() bool {
	switch k {
	case BetKindSpreadHome, BetKindSpreadAway, BetKindMoneylineHome, BetKindMoneylineAway, BetKindOver, BetKindUnder:
		return true
	}
	return false
}

// IsSpread reports whether the kind is graded against a point spread
func (k BetKind) IsSpread() bool {
	return k == BetKindSpreadHome || k == BetKindSpreadAway
}

// IsTotal reports whether the kind is graded against the combined score
func (k BetKind) IsTotal() bool {
	return k == BetKindOver || k == BetKindUnder
}

// IsMoneyline reports whether the kind is a straight-up winner bet
func (k BetKind) IsMoneyline() bool {
	return k == BetKindMoneylineHome || k == BetKindMoneylineAway
}

// RequiresLine reports whether a wager of this kind must carry a line
func (k BetKind) RequiresLine() bool {
	return k.IsSpread() || k.IsTotal()
}

// WagerStatus represents the state of a wager
type WagerStatus string

const (
	WagerStatusPending WagerStatus = "pending"
	WagerStatusWon     WagerStatus = "won"
	WagerStatusLost    WagerStatus = "lost"
	WagerStatusPush    WagerStatus = "push"
)

// IsTerminal reports whether the status can no longer change
func (s WagerStatus) IsTerminal() bool {
	return s == WagerStatusWon || s == WagerStatusLost || s == WagerStatusPush
}

// Wager represents one placed bet against an event
type Wager struct {
	ID        int64            `db:"id"`
	AccountID int64            `db:"account_id"`
	EventID   int64            `db:"event_id"`
	Kind      BetKind          `db:"kind"`
	Odds      decimal.Decimal  `db:"odds"`
	Stake     decimal.Decimal  `db:"stake"`
	Line      *decimal.Decimal `db:"line"`
	Payout    decimal.Decimal  `db:"payout"`
	Status    WagerStatus      `db:"status"`
	PlacedAt  time.Time        `db:"placed_at"`
	SettledAt *time.Time       `db:"settled_at"`
}

// IsPending checks if the wager is still awaiting settlement
func (w *Wager) IsPending() bool {
	return w.Status == WagerStatusPending
}
