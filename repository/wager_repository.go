package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportsbook/database"
	"sportsbook/models"
	"sportsbook/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const wagerColumns = `
	id, account_id, event_id, kind, odds::text, stake::text, line::text,
	payout::text, status, placed_at, settled_at`

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

func scanWager(row pgx.Row) (*models.Wager, error) {
	var wager models.Wager
	var line decimal.NullDecimal
	err := row.Scan(
		&wager.ID,
		&wager.AccountID,
		&wager.EventID,
		&wager.Kind,
		&wager.Odds,
		&wager.Stake,
		&line,
		&wager.Payout,
		&wager.Status,
		&wager.PlacedAt,
		&wager.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if line.Valid {
		wager.Line = &line.Decimal
	}
	return &wager, nil
}

func collectWagers(rows pgx.Rows) ([]*models.Wager, error) {
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", translateError(err))
	}
	return wagers, nil
}

// Create inserts a new wager
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (account_id, event_id, kind, odds, stake, line, payout, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, placed_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.AccountID,
		wager.EventID,
		wager.Kind,
		wager.Odds.String(),
		wager.Stake.StringFixed(2),
		nullableText(wager.Line),
		wager.Payout.StringFixed(2),
		wager.Status,
	).Scan(&wager.ID, &wager.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to create wager: %w", err)
	}
	return nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %d: %w", id, err)
	}
	return wager, nil
}

// GetByAccount returns the newest wagers for an account
func (r *WagerRepository) GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE account_id = $1
		ORDER BY placed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for account %d: %w", accountID, err)
	}
	return collectWagers(rows)
}

// GetPendingByEventForUpdate row-locks and returns the pending wagers of an event
func (r *WagerRepository) GetPendingByEventForUpdate(ctx context.Context, eventID int64) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE event_id = $1 AND status = 'pending'
		ORDER BY id
		FOR UPDATE
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending wagers for event %d: %w", eventID, translateError(err))
	}
	return collectWagers(rows)
}

// PendingPayoutTotal sums the payouts of the account's pending wagers
func (r *WagerRepository) PendingPayoutTotal(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(payout), 0)::text
		FROM wagers
		WHERE account_id = $1 AND status = 'pending'
	`

	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending payouts for account %d: %w", accountID, translateError(err))
	}
	return total, nil
}

// MarkSettled moves a pending wager to a terminal status
func (r *WagerRepository) MarkSettled(ctx context.Context, id int64, status models.WagerStatus, settledAt time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot settle wager %d with non-terminal status %q", id, status)
	}

	query := `
		UPDATE wagers
		SET status = $2, settled_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, status, settledAt)
	if err != nil {
		return fmt.Errorf("failed to settle wager %d: %w", id, translateError(err))
	}
	if result.RowsAffected() == 0 {
		return service.ErrWagerAlreadySettled
	}
	return nil
}
