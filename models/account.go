package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a bettor's ledger
type Account struct {
	ID          int64           `db:"id"`
	Username    string          `db:"username"`
	Balance     decimal.Decimal `db:"balance"`
	TotalStaked decimal.Decimal `db:"total_staked"`
	TotalWon    decimal.Decimal `db:"total_won"`
	BetsPlaced  int             `db:"bets_placed"`
	BetsWon     int             `db:"bets_won"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// CanAfford reports whether the account balance covers the given stake
func (a *Account) CanAfford(stake decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(stake)
}
