package testutil

import (
	"fmt"
	"time"

	"sportsbook/models"

	"github.com/shopspring/decimal"
)

// CreateTestEvent creates an unsaved event scheduled for today
func CreateTestEvent(externalID string) *models.Event {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return &models.Event{
		ExternalID:    externalID,
		HomeTeam:      "Home " + externalID,
		AwayTeam:      "Away " + externalID,
		ScheduledDate: today,
	}
}

// CreateTestWager creates an unsaved pending wager
func CreateTestWager(accountID, eventID int64, kind models.BetKind, stake, odds, payout string, line *string) *models.Wager {
	wager := &models.Wager{
		AccountID: accountID,
		EventID:   eventID,
		Kind:      kind,
		Stake:     decimal.RequireFromString(stake),
		Odds:      decimal.RequireFromString(odds),
		Payout:    decimal.RequireFromString(payout),
		Status:    models.WagerStatusPending,
	}
	if line != nil {
		l := decimal.RequireFromString(*line)
		wager.Line = &l
	}
	return wager
}

// CreateTestBalanceHistory creates an unsaved balance history entry
func CreateTestBalanceHistory(accountID int64, before, after string, transactionType models.TransactionType) *models.BalanceHistory {
	b := decimal.RequireFromString(before)
	a := decimal.RequireFromString(after)
	return &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   b,
		BalanceAfter:    a,
		ChangeAmount:    a.Sub(b),
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

// Username returns a unique username for a test
func Username(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
