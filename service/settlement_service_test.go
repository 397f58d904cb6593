package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sportsbook/config"
	"sportsbook/events"
	"sportsbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func finalSnapshot(home, away int) *models.ScoreSnapshot {
	return &models.ScoreSnapshot{ExternalID: "0022400007", Terminal: true, HomeScore: home, AwayScore: away}
}

func newTestSettlementService(m *serviceMocks, provider ScoreProvider) SettlementService {
	return NewSettlementService(m.factory, provider, config.NewTestConfig())
}

func TestSettlementService_SettleEvent_MixedOutcomes(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(true)
	provider := new(MockScoreProvider)

	// 108-101: home covers -6.5, total 209 pushes 209, away moneyline loses
	wagers := []*models.Wager{
		{ID: 1, AccountID: 20, Kind: models.BetKindSpreadHome, Line: decPtr("-6.5"), Stake: dec("100"), Payout: dec("190.91"), Status: models.WagerStatusPending},
		{ID: 2, AccountID: 10, Kind: models.BetKindOver, Line: decPtr("209"), Stake: dec("40"), Payout: dec("78.10"), Status: models.WagerStatusPending},
		{ID: 3, AccountID: 20, Kind: models.BetKindMoneylineAway, Stake: dec("25"), Payout: dec("70"), Status: models.WagerStatusPending},
	}

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(108, 101), nil)
	m.events.On("LockForSettlement", ctx, int64(7)).Return(nil)
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return(wagers, nil)
	m.accounts.On("LockForUpdate", ctx, []int64{10, 20}).Return(map[int64]*models.Account{10: {ID: 10}, 20: {ID: 20}}, nil)
	m.wagers.On("MarkSettled", ctx, mock.Anything, mock.Anything, mock.AnythingOfType("time.Time")).Return(nil)
	m.accounts.On("CreditWinnings", ctx, int64(20), decArg("190.91")).Return(dec("1090.91"), nil)
	m.accounts.On("RefundStake", ctx, int64(10), decArg("40")).Return(dec("1000"), nil)
	m.history.On("Record", ctx, mock.Anything).Return(nil)
	m.events.On("MarkCompleted", ctx, int64(7), 108, 101, mock.AnythingOfType("time.Time")).Return(nil)

	result, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusSettled, result.Status)
	assert.Equal(t, 3, result.SettledCount)
	assert.NotEmpty(t, result.RunID)

	verdicts := map[int64]models.Verdict{}
	for _, o := range result.Outcomes {
		verdicts[o.WagerID] = o.Verdict
	}
	assert.Equal(t, map[int64]models.Verdict{1: models.VerdictWon, 2: models.VerdictPush, 3: models.VerdictLost}, verdicts)

	m.wagers.AssertCalled(t, "MarkSettled", ctx, int64(3), models.WagerStatusLost, mock.Anything)
	m.uow.AssertNumberOfCalls(t, "Commit", 1)
	assert.Len(t, m.uow.Published().OfType(events.EventTypeEventSettled), 1)
}

func TestSettlementService_SettleEvent_NotReady(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(&models.ScoreSnapshot{Terminal: false, HomeScore: 54, AwayScore: 50}, nil)

	result, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusNotReady, result.Status)
	assert.False(t, result.IsReady())
	assert.Zero(t, result.SettledCount)
	m.events.AssertNotCalled(t, "LockForSettlement", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestSettlementService_SettleEvent_FetchFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		fetchErr  error
		kind      FetchErrorKind
		retryable bool
	}{
		{"not found", &ExternalFetchError{Kind: FetchNotFound, ExternalID: "0022400007", Err: errors.New("404")}, FetchNotFound, false},
		{"malformed", &ExternalFetchError{Kind: FetchMalformed, ExternalID: "0022400007", Err: errors.New("missing score")}, FetchMalformed, false},
		{"untyped error treated as transient", errors.New("dial tcp: timeout"), FetchTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newServiceMocks()
			m.expectTransaction(false)
			provider := new(MockScoreProvider)

			m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
			provider.On("Fetch", mock.Anything, "0022400007").Return(nil, tt.fetchErr)

			_, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

			var fetchErr *ExternalFetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, tt.retryable, IsRetryableFetch(err))
			m.events.AssertNotCalled(t, "LockForSettlement", mock.Anything, mock.Anything)
			m.wagers.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSettlementService_SettleEvent_NegativeScoreIsMalformed(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(-1, 90), nil)

	_, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	var fetchErr *ExternalFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchMalformed, fetchErr.Kind)
}

func TestSettlementService_SettleEvent_EventNotFound(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(99)).Return(nil, nil)

	_, err := newTestSettlementService(m, provider).SettleEvent(ctx, 99)

	assert.ErrorIs(t, err, ErrEventNotFound)
	provider.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestSettlementService_SettleEvent_AlreadySettledIsNoOp(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(true)
	provider := new(MockScoreProvider)

	home, away := 120, 110
	completed := openEvent()
	completed.Completed = true
	completed.HomeScore = &home
	completed.AwayScore = &away

	m.events.On("GetByID", ctx, int64(7)).Return(completed, nil)
	m.events.On("LockForSettlement", ctx, int64(7)).Return(nil)
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return([]*models.Wager{}, nil)
	m.events.On("MarkCompleted", ctx, int64(7), 120, 110, mock.Anything).Return(nil)

	result, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	require.NoError(t, err)
	assert.Zero(t, result.SettledCount)
	assert.Equal(t, 120, result.HomeScore)
	provider.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.accounts.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
	assert.Empty(t, m.uow.Published().OfType(events.EventTypeEventSettled))
}

func TestSettlementService_SettleEvent_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(true)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(100, 90), nil).Once()
	m.events.On("LockForSettlement", ctx, int64(7)).
		Return(fmt.Errorf("deadlock detected: %w", ErrConcurrencyConflict)).Once()
	m.events.On("LockForSettlement", ctx, int64(7)).Return(nil)
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return([]*models.Wager{}, nil)
	m.events.On("MarkCompleted", ctx, int64(7), 100, 90, mock.Anything).Return(nil)

	result, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusSettled, result.Status)
	m.events.AssertNumberOfCalls(t, "LockForSettlement", 2)
	provider.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestSettlementService_SettleEvent_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(100, 90), nil)
	m.events.On("LockForSettlement", ctx, int64(7)).Return(nil)
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return([]*models.Wager{
		{ID: 1, AccountID: 5, Kind: models.BetKindMoneylineHome, Stake: dec("10"), Payout: dec("20"), Status: models.WagerStatusPending},
	}, nil)
	m.accounts.On("LockForUpdate", ctx, []int64{5}).Return(map[int64]*models.Account{5: {ID: 5}}, nil)
	m.wagers.On("MarkSettled", ctx, int64(1), models.WagerStatusWon, mock.Anything).Return(ErrWagerAlreadySettled)

	_, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	m.events.AssertNumberOfCalls(t, "LockForSettlement", config.NewTestConfig().SettlementMaxAttempts)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestSettlementService_SettleEvent_StorageFailure(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(100, 90), nil)
	m.events.On("LockForSettlement", ctx, int64(7)).Return(errors.New("relation does not exist"))

	_, err := newTestSettlementService(m, provider).SettleEvent(ctx, 7)

	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	m.events.AssertNumberOfCalls(t, "LockForSettlement", 1)
}

func TestSettlementService_SettleEvent_FetchTimeout(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTransaction(false)
	provider := new(MockScoreProvider)

	cfg := config.NewTestConfig()
	cfg.ScoreFetchTimeout = 10 * time.Millisecond
	svc := NewSettlementService(m.factory, provider, cfg)

	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, &ExternalFetchError{Kind: FetchTransient, ExternalID: "0022400007", Err: context.DeadlineExceeded})

	_, err := svc.SettleEvent(ctx, 7)

	assert.True(t, IsRetryableFetch(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSettlementService_SettleEvent_SecondRunWaitsForFirst(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	provider := new(MockScoreProvider)
	m.uow.Published()

	firstLocked := make(chan struct{})
	secondWaiting := make(chan struct{})
	firstCommitted := make(chan struct{})
	var commitOnce sync.Once
	var lockCalls atomic.Int32

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.uow.On("Commit").Return(nil).Run(func(mock.Arguments) {
		commitOnce.Do(func() { close(firstCommitted) })
	})

	// The first run holds the event lock until the second run is queued on it;
	// the second is let through only after the first commits.
	m.events.On("LockForSettlement", ctx, int64(7)).Return(nil).Run(func(mock.Arguments) {
		switch lockCalls.Add(1) {
		case 1:
			close(firstLocked)
			<-secondWaiting
		case 2:
			close(secondWaiting)
			<-firstCommitted
		}
	})

	wager := &models.Wager{ID: 1, AccountID: 5, Kind: models.BetKindMoneylineHome, Stake: dec("10"), Payout: dec("20"), Status: models.WagerStatusPending}
	m.events.On("GetByID", ctx, int64(7)).Return(openEvent(), nil)
	provider.On("Fetch", mock.Anything, "0022400007").Return(finalSnapshot(100, 90), nil)
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return([]*models.Wager{wager}, nil).Once()
	m.wagers.On("GetPendingByEventForUpdate", ctx, int64(7)).Return([]*models.Wager{}, nil).Once()
	m.accounts.On("LockForUpdate", ctx, []int64{5}).Return(map[int64]*models.Account{5: {ID: 5}}, nil)
	m.wagers.On("MarkSettled", ctx, int64(1), models.WagerStatusWon, mock.Anything).Return(nil)
	m.accounts.On("CreditWinnings", ctx, int64(5), decArg("20")).Return(dec("1010"), nil)
	m.history.On("Record", ctx, mock.Anything).Return(nil)
	m.events.On("MarkCompleted", ctx, int64(7), 100, 90, mock.Anything).Return(nil)

	svc := newTestSettlementService(m, provider)

	type outcome struct {
		result *models.SettlementResult
		err    error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	go func() {
		result, err := svc.SettleEvent(ctx, 7)
		first <- outcome{result, err}
	}()
	select {
	case <-firstLocked:
	case <-time.After(5 * time.Second):
		t.Fatal("first settlement never took the event lock")
	}
	go func() {
		result, err := svc.SettleEvent(ctx, 7)
		second <- outcome{result, err}
	}()

	wait := func(ch chan outcome) outcome {
		select {
		case o := <-ch:
			return o
		case <-time.After(5 * time.Second):
			t.Fatal("settlement did not finish")
			return outcome{}
		}
	}
	firstOutcome := wait(first)
	secondOutcome := wait(second)

	require.NoError(t, firstOutcome.err)
	require.NoError(t, secondOutcome.err)
	assert.Equal(t, 1, firstOutcome.result.SettledCount)
	assert.Zero(t, secondOutcome.result.SettledCount)

	m.accounts.AssertNumberOfCalls(t, "CreditWinnings", 1)
	m.wagers.AssertNumberOfCalls(t, "MarkSettled", 1)
	m.events.AssertNumberOfCalls(t, "LockForSettlement", 2)
	assert.Len(t, m.uow.Published().OfType(events.EventTypeEventSettled), 1)
}
