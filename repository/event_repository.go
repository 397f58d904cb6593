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

const eventColumns = `
	id, external_id, home_team, away_team, scheduled_date, completed,
	home_score, away_score, settled_at,
	home_spread::text, home_spread_odds::text, away_spread_odds::text,
	home_moneyline::text, away_moneyline::text,
	total_line::text, over_odds::text, under_odds::text,
	opening_home_spread::text, opening_total_line::text, quotes_updated_at,
	created_at, updated_at`

// EventRepository implements the EventRepository interface
type EventRepository struct {
	q queryable
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{q: db.Pool}
}

// newEventRepositoryWithTx creates a new event repository with a transaction
func newEventRepositoryWithTx(tx queryable) *EventRepository {
	return &EventRepository{q: tx}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	var prices [10]decimal.NullDecimal
	err := row.Scan(
		&event.ID,
		&event.ExternalID,
		&event.HomeTeam,
		&event.AwayTeam,
		&event.ScheduledDate,
		&event.Completed,
		&event.HomeScore,
		&event.AwayScore,
		&event.SettledAt,
		&prices[0],
		&prices[1],
		&prices[2],
		&prices[3],
		&prices[4],
		&prices[5],
		&prices[6],
		&prices[7],
		&prices[8],
		&prices[9],
		&event.Quotes.UpdatedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q := &event.Quotes
	targets := []**decimal.Decimal{
		&q.HomeSpread, &q.HomeSpreadOdds, &q.AwaySpreadOdds,
		&q.HomeMoneyline, &q.AwayMoneyline,
		&q.TotalLine, &q.OverOdds, &q.UnderOdds,
		&q.OpeningHomeSpread, &q.OpeningTotalLine,
	}
	for i, target := range targets {
		if prices[i].Valid {
			d := prices[i].Decimal
			*target = &d
		}
	}
	return &event, nil
}

// nullableText passes an optional decimal to postgres as text, nil as NULL
func nullableText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Create inserts a new event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (external_id, home_team, away_team, scheduled_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, completed, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		event.ExternalID,
		event.HomeTeam,
		event.AwayTeam,
		event.ScheduledDate,
	).Scan(&event.ID, &event.Completed, &event.CreatedAt, &event.UpdatedAt)
	if isUniqueViolation(err) {
		return &service.ValidationError{Field: "externalId", Reason: fmt.Sprintf("event %s already imported", event.ExternalID), Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to create event %s: %w", event.ExternalID, err)
	}
	return nil
}

// GetByID retrieves an event by its ID
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

// GetByExternalID retrieves an event by its score provider id
func (r *EventRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE external_id = $1`

	event, err := scanEvent(r.q.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", externalID, err)
	}
	return event, nil
}

// GetByTeamsAndDate retrieves the event matching a home/away pairing on a date
func (r *EventRepository) GetByTeamsAndDate(ctx context.Context, homeTeam, awayTeam string, date time.Time) (*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE home_team = $1 AND away_team = $2 AND scheduled_date = $3::date
		ORDER BY id
		LIMIT 1
	`

	event, err := scanEvent(r.q.QueryRow(ctx, query, homeTeam, awayTeam, date.Format(time.DateOnly)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s vs %s on %s: %w", homeTeam, awayTeam, date.Format(time.DateOnly), err)
	}
	return event, nil
}

// GetByDate returns the events scheduled on the given date
func (r *EventRepository) GetByDate(ctx context.Context, date time.Time) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE scheduled_date = $1::date ORDER BY id`

	events, err := r.queryEvents(ctx, query, date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to get events for %s: %w", date.Format(time.DateOnly), err)
	}
	return events, nil
}

// GetSettleCandidates returns uncompleted events scheduled on or before asOf, oldest first
func (r *EventRepository) GetSettleCandidates(ctx context.Context, asOf time.Time, limit int) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE NOT completed AND scheduled_date <= $1::date
		ORDER BY scheduled_date, id
		LIMIT $2
	`

	events, err := r.queryEvents(ctx, query, asOf.Format(time.DateOnly), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get settle candidates: %w", err)
	}
	return events, nil
}

// LockForSettlement takes the exclusive advisory lock keyed by the event id,
// released at commit or rollback
func (r *EventRepository) LockForSettlement(ctx context.Context, eventID int64) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, eventID); err != nil {
		return fmt.Errorf("failed to take settlement lock on event %d: %w", eventID, translateError(err))
	}
	return nil
}

// LockForPlacement takes the shared per-event advisory lock.
// Placements do not block each other, only a running settlement.
func (r *EventRepository) LockForPlacement(ctx context.Context, eventID int64) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, eventID); err != nil {
		return fmt.Errorf("failed to take placement lock on event %d: %w", eventID, translateError(err))
	}
	return nil
}

// UpdateExternalID reassigns the score provider id of an uncompleted event.
// Returns false when the event is missing or already completed.
func (r *EventRepository) UpdateExternalID(ctx context.Context, eventID int64, externalID string) (bool, error) {
	query := `
		UPDATE events
		SET external_id = $2, updated_at = NOW()
		WHERE id = $1 AND NOT completed
	`

	result, err := r.q.Exec(ctx, query, eventID, externalID)
	if isUniqueViolation(err) {
		return false, &service.ValidationError{Field: "externalId", Reason: fmt.Sprintf("external id %s belongs to another event", externalID), Err: err}
	}
	if err != nil {
		return false, fmt.Errorf("failed to set external id of event %d: %w", eventID, translateError(err))
	}
	return result.RowsAffected() == 1, nil
}

// UpdateQuotes posts new prices on an uncompleted event and returns the stored row.
// Nil fields keep their current value; opening lines are written only once.
// Returns nil when the event is missing or already completed.
func (r *EventRepository) UpdateQuotes(ctx context.Context, eventID int64, quotes models.QuoteBoard) (*models.Event, error) {
	query := `
		UPDATE events
		SET home_spread = COALESCE($2::numeric, home_spread),
		    home_spread_odds = COALESCE($3::numeric, home_spread_odds),
		    away_spread_odds = COALESCE($4::numeric, away_spread_odds),
		    home_moneyline = COALESCE($5::numeric, home_moneyline),
		    away_moneyline = COALESCE($6::numeric, away_moneyline),
		    total_line = COALESCE($7::numeric, total_line),
		    over_odds = COALESCE($8::numeric, over_odds),
		    under_odds = COALESCE($9::numeric, under_odds),
		    opening_home_spread = COALESCE(opening_home_spread, $2::numeric),
		    opening_total_line = COALESCE(opening_total_line, $7::numeric),
		    quotes_updated_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND NOT completed
		RETURNING ` + eventColumns

	event, err := scanEvent(r.q.QueryRow(ctx, query,
		eventID,
		nullableText(quotes.HomeSpread),
		nullableText(quotes.HomeSpreadOdds),
		nullableText(quotes.AwaySpreadOdds),
		nullableText(quotes.HomeMoneyline),
		nullableText(quotes.AwayMoneyline),
		nullableText(quotes.TotalLine),
		nullableText(quotes.OverOdds),
		nullableText(quotes.UnderOdds),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update quotes of event %d: %w", eventID, translateError(err))
	}
	return event, nil
}

// MarkCompleted records the final score. An already completed event keeps its stored score.
func (r *EventRepository) MarkCompleted(ctx context.Context, eventID int64, homeScore, awayScore int, settledAt time.Time) error {
	query := `
		UPDATE events
		SET completed = TRUE,
		    home_score = $2,
		    away_score = $3,
		    settled_at = $4,
		    updated_at = NOW()
		WHERE id = $1 AND NOT completed
	`

	if _, err := r.q.Exec(ctx, query, eventID, homeScore, awayScore, settledAt); err != nil {
		return fmt.Errorf("failed to complete event %d: %w", eventID, translateError(err))
	}
	return nil
}
