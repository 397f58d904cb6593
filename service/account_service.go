package service

import (
	"context"
	"fmt"
	"strings"

	"sportsbook/config"
	"sportsbook/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const maxUsernameLength = 64

// accountService implements the AccountService interface
type accountService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance decimal.Decimal
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, cfg *config.Config) AccountService {
	return &accountService{
		uowFactory:      uowFactory,
		startingBalance: cfg.StartingBalance,
	}
}

// Register creates an account funded with the starting balance
func (s *accountService) Register(ctx context.Context, username string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "username cannot be empty"}
	}
	if len(username) > maxUsernameLength {
		return nil, &ValidationError{Field: "username", Reason: fmt.Sprintf("username cannot exceed %d characters", maxUsernameLength)}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin registration", Err: err}
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().Create(ctx, username, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	history := &models.BalanceHistory{
		AccountID:       account.ID,
		BalanceBefore:   decimal.Zero,
		BalanceAfter:    s.startingBalance,
		ChangeAmount:    s.startingBalance,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"username": username,
		},
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, &PersistenceError{Op: "record initial balance", Err: err}
	}

	if err := uow.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit registration", Err: err}
	}

	log.WithFields(log.Fields{
		"accountID": account.ID,
		"username":  username,
	}).Info("Account registered")

	return account, nil
}

// GetAccount returns an account with its balance and counters
func (s *accountService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "load account", Err: err}
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// GetBalanceHistory returns the newest balance changes of an account
func (s *accountService) GetBalanceHistory(ctx context.Context, accountID int64, limit int) ([]*models.BalanceHistory, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, &PersistenceError{Op: "load account", Err: err}
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	history, err := uow.BalanceHistoryRepository().GetByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list balance history", Err: err}
	}
	return history, nil
}
