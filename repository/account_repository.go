package repository

import (
	"context"
	"errors"
	"fmt"

	"sportsbook/database"
	"sportsbook/models"
	"sportsbook/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `
	id, username, balance::text, total_staked::text, total_won::text,
	bets_placed, bets_won, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Balance,
		&account.TotalStaked,
		&account.TotalWon,
		&account.BetsPlaced,
		&account.BetsWon,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account, returning nil when it does not exist
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// GetForUpdate retrieves an account and row-locks it until the transaction ends
func (r *AccountRepository) GetForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", id, translateError(err))
	}
	return account, nil
}

// LockForUpdate row-locks the given accounts in ascending id order
func (r *AccountRepository) LockForUpdate(ctx context.Context, ids []int64) (map[int64]*models.Account, error) {
	accounts := make(map[int64]*models.Account, len(ids))
	if len(ids) == 0 {
		return accounts, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", translateError(err))
	}
	defer rows.Close()

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", translateError(err))
	}

	return accounts, nil
}

// Create creates a new account with the initial balance
func (r *AccountRepository) Create(ctx context.Context, username string, initialBalance decimal.Decimal) (*models.Account, error) {
	query := `
		INSERT INTO accounts (username, balance)
		VALUES ($1, $2)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, username, initialBalance.StringFixed(2)))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create account %q: %w", username, service.ErrUsernameTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", username, err)
	}
	return account, nil
}

// DeductStake debits a stake and bumps the placement counters.
// The balance guard in the WHERE clause keeps the balance non-negative.
func (r *AccountRepository) DeductStake(ctx context.Context, id int64, stake decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $2,
		    total_staked = total_staked + $2,
		    bets_placed = bets_placed + 1,
		    updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance::text
	`

	var newBalance decimal.Decimal
	err := r.q.QueryRow(ctx, query, id, stake.StringFixed(2)).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		account, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return decimal.Zero, getErr
		}
		if account == nil {
			return decimal.Zero, service.ErrAccountNotFound
		}
		return decimal.Zero, &service.InsufficientFundsError{AccountID: id, Balance: account.Balance, Stake: stake}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deduct stake from account %d: %w", id, translateError(err))
	}
	return newBalance, nil
}

// CreditWinnings credits a winning payout and bumps the win counters
func (r *AccountRepository) CreditWinnings(ctx context.Context, id int64, payout decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2,
		    total_won = total_won + $2,
		    bets_won = bets_won + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING balance::text
	`
	return r.credit(ctx, query, id, payout)
}

// RefundStake returns a pushed stake to the balance
func (r *AccountRepository) RefundStake(ctx context.Context, id int64, stake decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING balance::text
	`
	return r.credit(ctx, query, id, stake)
}

func (r *AccountRepository) credit(ctx context.Context, query string, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := r.q.QueryRow(ctx, query, id, amount.StringFixed(2)).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, service.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit account %d: %w", id, translateError(err))
	}
	return newBalance, nil
}
