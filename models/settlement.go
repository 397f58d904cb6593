package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the graded outcome of a single wager
type Verdict string

const (
	VerdictWon  Verdict = "won"
	VerdictLost Verdict = "lost"
	VerdictPush Verdict = "push"
)

// Status returns the terminal wager status for the verdict
func (v Verdict) Status() WagerStatus {
	switch v {
	case VerdictWon:
		return WagerStatusWon
	case VerdictPush:
		return WagerStatusPush
	default:
		return WagerStatusLost
	}
}

// ScoreSnapshot is a validated final-score report from the score provider
type ScoreSnapshot struct {
	ExternalID string
	Terminal   bool
	HomeScore  int
	AwayScore  int
	RawStats   json.RawMessage
	FetchedAt  time.Time
}

// TotalScore returns the combined score of both sides
func (s *ScoreSnapshot) TotalScore() int {
	return s.HomeScore + s.AwayScore
}

// SettlementStatus describes how a settlement attempt ended
type SettlementStatus string

const (
	SettlementStatusSettled  SettlementStatus = "settled"
	SettlementStatusNotReady SettlementStatus = "not_ready"
)

// WagerOutcome is the per-wager result of a settlement run
type WagerOutcome struct {
	WagerID   int64
	AccountID int64
	Kind      BetKind
	Verdict   Verdict
	Credited  decimal.Decimal // amount returned to the balance (payout, stake or zero)
}

// SettlementResult represents the outcome of settling one event
type SettlementResult struct {
	EventID      int64
	RunID        string
	Status       SettlementStatus
	HomeScore    int
	AwayScore    int
	SettledCount int
	Outcomes     []*WagerOutcome
}

// IsReady reports whether the event had reached a terminal state
func (r *SettlementResult) IsReady() bool {
	return r.Status != SettlementStatusNotReady
}
