package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a scheduled contest that wagers are placed against
type Event struct {
	ID            int64      `db:"id"`
	ExternalID    string     `db:"external_id"`
	HomeTeam      string     `db:"home_team"`
	AwayTeam      string     `db:"away_team"`
	ScheduledDate time.Time  `db:"scheduled_date"`
	Completed     bool       `db:"completed"`
	HomeScore     *int       `db:"home_score"`
	AwayScore     *int       `db:"away_score"`
	SettledAt     *time.Time `db:"settled_at"`
	Quotes        QuoteBoard
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// AcceptsWagers reports whether new wagers may still be placed on the event
func (e *Event) AcceptsWagers() bool {
	return !e.Completed
}

// QuoteBoard holds the prices currently posted for an event.
// Nil fields have not been quoted. Wagers carry their own odds and line,
// so the board is informational and never consulted when grading.
type QuoteBoard struct {
	HomeSpread        *decimal.Decimal `db:"home_spread"`
	HomeSpreadOdds    *decimal.Decimal `db:"home_spread_odds"`
	AwaySpreadOdds    *decimal.Decimal `db:"away_spread_odds"`
	HomeMoneyline     *decimal.Decimal `db:"home_moneyline"`
	AwayMoneyline     *decimal.Decimal `db:"away_moneyline"`
	TotalLine         *decimal.Decimal `db:"total_line"`
	OverOdds          *decimal.Decimal `db:"over_odds"`
	UnderOdds         *decimal.Decimal `db:"under_odds"`
	OpeningHomeSpread *decimal.Decimal `db:"opening_home_spread"`
	OpeningTotalLine  *decimal.Decimal `db:"opening_total_line"`
	UpdatedAt         *time.Time       `db:"quotes_updated_at"`
}

// IsEmpty reports whether no price has been posted
func (q QuoteBoard) IsEmpty() bool {
	return q.UpdatedAt == nil
}
