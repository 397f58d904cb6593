package service

import (
	"context"
	"testing"
	"time"

	"sportsbook/events"
	"sportsbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingWager() *models.Wager {
	return &models.Wager{
		ID:        11,
		AccountID: 3,
		EventID:   7,
		Kind:      models.BetKindMoneylineHome,
		Odds:      dec("-110"),
		Stake:     dec("100.00"),
		Payout:    dec("190.91"),
		Status:    models.WagerStatusPending,
	}
}

func TestApplyVerdict_Won(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	settledAt := time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC)
	wager := pendingWager()

	m.wagers.On("MarkSettled", ctx, int64(11), models.WagerStatusWon, settledAt).Return(nil)
	m.accounts.On("CreditWinnings", ctx, int64(3), decArg("190.91")).Return(dec("1090.91"), nil)
	m.history.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeWagerWon &&
			h.BalanceBefore.Equal(dec("900")) &&
			h.BalanceAfter.Equal(dec("1090.91")) &&
			h.ChangeAmount.Equal(dec("190.91"))
	})).Return(nil)

	outcome, err := ApplyVerdict(ctx, m.uow, wager, models.VerdictWon, settledAt)

	require.NoError(t, err)
	assert.Equal(t, models.VerdictWon, outcome.Verdict)
	assert.Equal(t, "190.91", outcome.Credited.StringFixed(2))
	assert.Equal(t, models.WagerStatusWon, wager.Status)
	assert.Equal(t, settledAt, *wager.SettledAt)
	assert.Len(t, m.uow.Published().OfType(events.EventTypeBalanceChange), 1)
}

func TestApplyVerdict_PushRefundsStake(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	settledAt := time.Now().UTC()
	wager := pendingWager()

	m.wagers.On("MarkSettled", ctx, int64(11), models.WagerStatusPush, settledAt).Return(nil)
	m.accounts.On("RefundStake", ctx, int64(3), decArg("100")).Return(dec("1000.00"), nil)
	m.history.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeWagerPush && h.ChangeAmount.Equal(dec("100"))
	})).Return(nil)

	outcome, err := ApplyVerdict(ctx, m.uow, wager, models.VerdictPush, settledAt)

	require.NoError(t, err)
	assert.Equal(t, "100.00", outcome.Credited.StringFixed(2))
	m.accounts.AssertNotCalled(t, "CreditWinnings", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyVerdict_LostTouchesNoBalance(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	settledAt := time.Now().UTC()
	wager := pendingWager()

	m.wagers.On("MarkSettled", ctx, int64(11), models.WagerStatusLost, settledAt).Return(nil)

	outcome, err := ApplyVerdict(ctx, m.uow, wager, models.VerdictLost, settledAt)

	require.NoError(t, err)
	assert.True(t, outcome.Credited.IsZero())
	assert.Equal(t, models.WagerStatusLost, wager.Status)
	m.accounts.AssertNotCalled(t, "CreditWinnings", mock.Anything, mock.Anything, mock.Anything)
	m.accounts.AssertNotCalled(t, "RefundStake", mock.Anything, mock.Anything, mock.Anything)
	m.history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	assert.Empty(t, m.uow.Published().Events)
}

func TestApplyVerdict_AlreadySettled(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal wager in memory", func(t *testing.T) {
		m := newServiceMocks()
		wager := pendingWager()
		wager.Status = models.WagerStatusWon

		_, err := ApplyVerdict(ctx, m.uow, wager, models.VerdictWon, time.Now())
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		m.wagers.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("settled by someone else", func(t *testing.T) {
		m := newServiceMocks()
		m.wagers.On("MarkSettled", ctx, int64(11), models.WagerStatusWon, mock.Anything).Return(ErrWagerAlreadySettled)

		_, err := ApplyVerdict(ctx, m.uow, pendingWager(), models.VerdictWon, time.Now())
		assert.ErrorIs(t, err, ErrWagerAlreadySettled)
		m.accounts.AssertNotCalled(t, "CreditWinnings", mock.Anything, mock.Anything, mock.Anything)
	})
}
