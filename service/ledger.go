package service

import (
	"context"
	"fmt"
	"time"

	"sportsbook/events"
	"sportsbook/models"

	"github.com/shopspring/decimal"
)

// RecordBalanceChange records a balance history entry and emits the matching events.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:       history.AccountID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		if username, ok := history.TransactionMetadata["username"].(string); ok {
			uow.EventBus().Publish(events.AccountCreatedEvent{
				AccountID:      history.AccountID,
				Username:       username,
				InitialBalance: history.BalanceAfter,
			})
		}
	}

	return nil
}

// ApplyVerdict moves a pending wager to its terminal status and applies the
// matching balance effect inside an already-begun unit of work. It never commits.
//
// Won credits the stored payout, Push refunds the stake, Lost leaves the balance alone.
func ApplyVerdict(ctx context.Context, uow UnitOfWork, wager *models.Wager, verdict models.Verdict, settledAt time.Time) (*models.WagerOutcome, error) {
	if !wager.IsPending() {
		return nil, fmt.Errorf("wager %d is %s: %w", wager.ID, wager.Status, ErrWagerAlreadySettled)
	}

	status := verdict.Status()
	if err := uow.WagerRepository().MarkSettled(ctx, wager.ID, status, settledAt); err != nil {
		return nil, fmt.Errorf("failed to mark wager %d %s: %w", wager.ID, status, err)
	}

	outcome := &models.WagerOutcome{
		WagerID:   wager.ID,
		AccountID: wager.AccountID,
		Kind:      wager.Kind,
		Verdict:   verdict,
		Credited:  decimal.Zero,
	}

	switch verdict {
	case models.VerdictWon:
		newBalance, err := uow.AccountRepository().CreditWinnings(ctx, wager.AccountID, wager.Payout)
		if err != nil {
			return nil, fmt.Errorf("failed to credit winnings for wager %d: %w", wager.ID, err)
		}
		if err := recordSettlementChange(ctx, uow, wager, newBalance, wager.Payout, models.TransactionTypeWagerWon); err != nil {
			return nil, err
		}
		outcome.Credited = wager.Payout

	case models.VerdictPush:
		newBalance, err := uow.AccountRepository().RefundStake(ctx, wager.AccountID, wager.Stake)
		if err != nil {
			return nil, fmt.Errorf("failed to refund stake for wager %d: %w", wager.ID, err)
		}
		if err := recordSettlementChange(ctx, uow, wager, newBalance, wager.Stake, models.TransactionTypeWagerPush); err != nil {
			return nil, err
		}
		outcome.Credited = wager.Stake
	}

	wager.Status = status
	wager.SettledAt = &settledAt

	return outcome, nil
}

func recordSettlementChange(ctx context.Context, uow UnitOfWork, wager *models.Wager, newBalance, amount decimal.Decimal, txType models.TransactionType) error {
	relatedType := models.RelatedTypeWager
	history := &models.BalanceHistory{
		AccountID:       wager.AccountID,
		BalanceBefore:   newBalance.Sub(amount),
		BalanceAfter:    newBalance,
		ChangeAmount:    amount,
		TransactionType: txType,
		TransactionMetadata: map[string]any{
			"wager_id": wager.ID,
			"event_id": wager.EventID,
			"kind":     string(wager.Kind),
			"odds":     wager.Odds.String(),
			"stake":    wager.Stake.StringFixed(2),
		},
		RelatedID:   &wager.ID,
		RelatedType: &relatedType,
	}
	return RecordBalanceChange(ctx, uow, history)
}
