package service

import (
	"context"
	"time"

	"sportsbook/events"
	"sportsbook/models"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account, returning nil when it does not exist
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// GetForUpdate retrieves an account and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*models.Account, error)

	// LockForUpdate row-locks the given accounts in ascending id order
	LockForUpdate(ctx context.Context, ids []int64) (map[int64]*models.Account, error)

	// Create creates a new account with the initial balance
	Create(ctx context.Context, username string, initialBalance decimal.Decimal) (*models.Account, error)

	// DeductStake debits a stake and bumps the placement counters, returning the new balance.
	// Fails with *InsufficientFundsError when the balance does not cover the stake.
	DeductStake(ctx context.Context, id int64, stake decimal.Decimal) (decimal.Decimal, error)

	// CreditWinnings credits a winning payout and bumps the win counters, returning the new balance
	CreditWinnings(ctx context.Context, id int64, payout decimal.Decimal) (decimal.Decimal, error)

	// RefundStake returns a pushed stake, returning the new balance
	RefundStake(ctx context.Context, id int64, stake decimal.Decimal) (decimal.Decimal, error)
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create inserts a new pending wager, filling in ID and PlacedAt
	Create(ctx context.Context, wager *models.Wager) error

	// GetByID retrieves a wager, returning nil when it does not exist
	GetByID(ctx context.Context, id int64) (*models.Wager, error)

	// GetByAccount returns the newest wagers for an account
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Wager, error)

	// GetPendingByEventForUpdate row-locks and returns the pending wagers of an event
	GetPendingByEventForUpdate(ctx context.Context, eventID int64) ([]*models.Wager, error)

	// PendingPayoutTotal sums the payouts of the account's pending wagers
	PendingPayoutTotal(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// MarkSettled moves a pending wager to a terminal status.
	// Returns ErrWagerAlreadySettled when the wager is no longer pending.
	MarkSettled(ctx context.Context, id int64, status models.WagerStatus, settledAt time.Time) error
}

// EventRepository defines the interface for event data access
type EventRepository interface {
	// Create inserts a new event, filling in ID and timestamps
	Create(ctx context.Context, event *models.Event) error

	// GetByID retrieves an event, returning nil when it does not exist
	GetByID(ctx context.Context, id int64) (*models.Event, error)

	// GetByExternalID retrieves an event by its score provider id
	GetByExternalID(ctx context.Context, externalID string) (*models.Event, error)

	// GetByTeamsAndDate retrieves the event matching a home/away pairing on a date,
	// returning nil when there is none
	GetByTeamsAndDate(ctx context.Context, homeTeam, awayTeam string, date time.Time) (*models.Event, error)

	// GetByDate returns the events scheduled on the given UTC date
	GetByDate(ctx context.Context, date time.Time) ([]*models.Event, error)

	// GetSettleCandidates returns uncompleted events scheduled on or before the given date
	GetSettleCandidates(ctx context.Context, asOf time.Time, limit int) ([]*models.Event, error)

	// LockForSettlement takes the exclusive per-event settlement lock for the transaction
	LockForSettlement(ctx context.Context, eventID int64) error

	// LockForPlacement takes the shared per-event lock held while a wager is placed
	LockForPlacement(ctx context.Context, eventID int64) error

	// UpdateExternalID reassigns the provider id of an uncompleted event,
	// reporting whether a row changed
	UpdateExternalID(ctx context.Context, eventID int64, externalID string) (bool, error)

	// UpdateQuotes posts prices on an uncompleted event, returning nil when none matched
	UpdateQuotes(ctx context.Context, eventID int64, quotes models.QuoteBoard) (*models.Event, error)

	// MarkCompleted records the final score once; later calls leave the stored score intact
	MarkCompleted(ctx context.Context, eventID int64, homeScore, awayScore int, settledAt time.Time) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByAccount returns balance history for a specific account, newest first
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// ScoreProvider fetches final-score snapshots from an upstream feed.
// Failures are returned as *ExternalFetchError.
type ScoreProvider interface {
	Fetch(ctx context.Context, externalID string) (*models.ScoreSnapshot, error)
}

// UnitOfWork defines the interface for managing transactional boundaries
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	AccountRepository() AccountRepository
	WagerRepository() WagerRepository
	EventRepository() EventRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// AccountService defines the interface for account operations
type AccountService interface {
	// Register creates an account funded with the configured starting balance
	Register(ctx context.Context, username string) (*models.Account, error)

	// GetAccount returns an account with its balance and counters
	GetAccount(ctx context.Context, id int64) (*models.Account, error)

	// GetBalanceHistory returns the newest balance changes of an account
	GetBalanceHistory(ctx context.Context, accountID int64, limit int) ([]*models.BalanceHistory, error)
}

// WagerService defines the interface for wager operations
type WagerService interface {
	// PlaceWager validates, prices and books a wager, debiting the stake
	PlaceWager(ctx context.Context, req PlaceWagerRequest) (*models.Wager, error)

	// GetWager returns a single wager
	GetWager(ctx context.Context, id int64) (*models.Wager, error)

	// ListWagers returns the newest wagers of an account
	ListWagers(ctx context.Context, accountID int64, limit int) ([]*models.Wager, error)
}

// EventService defines the interface for event operations
type EventService interface {
	// CreateEvent imports a scheduled event
	CreateEvent(ctx context.Context, req CreateEventRequest) (*models.Event, error)

	// GetEvent returns a single event
	GetEvent(ctx context.Context, id int64) (*models.Event, error)

	// GetEventByExternalID returns the event with the given provider id
	GetEventByExternalID(ctx context.Context, externalID string) (*models.Event, error)

	// GetEventByTeams returns the event of a home/away pairing on a UTC date
	GetEventByTeams(ctx context.Context, homeTeam, awayTeam string, date time.Time) (*models.Event, error)

	// ListEventsByDate returns the events scheduled on a UTC date
	ListEventsByDate(ctx context.Context, date time.Time) ([]*models.Event, error)

	// SetExternalID attaches a provider id to the event found by teams and date
	SetExternalID(ctx context.Context, req SetExternalIDRequest) (*models.Event, error)

	// UpdateQuotes posts the current prices of an event
	UpdateQuotes(ctx context.Context, eventID int64, quotes models.QuoteBoard) (*models.Event, error)

	// ListSettleCandidates returns uncompleted events scheduled on or before asOf
	ListSettleCandidates(ctx context.Context, asOf time.Time) ([]*models.Event, error)
}

// SettlementService defines the interface for settling events
type SettlementService interface {
	// SettleEvent grades and pays out every pending wager of an event
	SettleEvent(ctx context.Context, eventID int64) (*models.SettlementResult, error)
}
