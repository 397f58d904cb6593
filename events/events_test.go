package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"sportsbook/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversToBus(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangeEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			received <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		AccountID:       42,
		OldBalance:      decimal.RequireFromString("100.00"),
		NewBalance:      decimal.RequireFromString("290.91"),
		TransactionType: models.TransactionTypeWagerWon,
		ChangeAmount:    decimal.RequireFromString("190.91"),
	}

	transactionalBus.Publish(testEvent)
	assert.Equal(t, 1, transactionalBus.Pending())

	transactionalBus.Flush(context.Background())
	assert.Equal(t, 0, transactionalBus.Pending())

	select {
	case got := <-received:
		assert.Equal(t, testEvent.AccountID, got.AccountID)
		assert.True(t, testEvent.ChangeAmount.Equal(got.ChangeAmount))
		assert.Equal(t, testEvent.TransactionType, got.TransactionType)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var mu sync.Mutex
	delivered := 0
	mainBus.Subscribe(EventTypeWagerPlaced, func(ctx context.Context, event Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	transactionalBus.Publish(WagerPlacedEvent{WagerID: 1})
	transactionalBus.Publish(WagerPlacedEvent{WagerID: 2})
	transactionalBus.Discard()
	transactionalBus.Flush(context.Background())

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, delivered)
}

func TestBus_OnlyMatchingHandlersRun(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(1)
	settled := make(chan EventSettledEvent, 1)
	bus.Subscribe(EventTypeEventSettled, func(ctx context.Context, event Event) {
		defer wg.Done()
		settled <- event.(EventSettledEvent)
	})
	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		t.Errorf("balance handler received %T", event)
	})

	bus.Emit(context.Background(), EventSettledEvent{EventID: 7, RunID: "run-1"})
	wg.Wait()

	got := <-settled
	assert.Equal(t, int64(7), got.EventID)
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeAccountCreated, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeAccountCreated, func(ctx context.Context, event Event) {
		close(done)
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), AccountCreatedEvent{AccountID: 1})
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run")
	}
}
