package service

import (
	"context"
	"fmt"

	"sportsbook/betting"
	"sportsbook/events"
	"sportsbook/metrics"
	"sportsbook/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultListLimit caps listing queries when the caller passes no limit
const DefaultListLimit = 50

// Upper bounds (exclusive) of the stored columns: odds NUMERIC(8,2),
// line NUMERIC(6,2), stake, payout and balance NUMERIC(12,2).
var (
	maxOddsMagnitude = decimal.NewFromInt(1_000_000)
	maxLineMagnitude = decimal.NewFromInt(10_000)
	maxMoneyAmount   = decimal.NewFromInt(10_000_000_000)
)

// PlaceWagerRequest describes a wager to be booked
type PlaceWagerRequest struct {
	AccountID int64
	EventID   int64
	Kind      models.BetKind
	Stake     decimal.Decimal
	Odds      decimal.Decimal
	Line      *decimal.Decimal
}

// Validate checks the request shape without touching storage
func (r PlaceWagerRequest) Validate() error {
	if !r.Kind.IsValid() {
		return newValidationError("kind", fmt.Errorf("%w: %q", betting.ErrUnknownBetKind, r.Kind))
	}
	if !r.Stake.IsPositive() {
		return newValidationError("stake", betting.ErrInvalidStake)
	}
	if !betting.HasMoneyPrecision(r.Stake) {
		return newValidationError("stake", betting.ErrTooPrecise)
	}
	if r.Stake.GreaterThanOrEqual(maxMoneyAmount) {
		return &ValidationError{Field: "stake", Reason: "stake is too large"}
	}
	if err := validateOdds("odds", r.Odds); err != nil {
		return err
	}

	switch {
	case r.Kind.RequiresLine() && r.Line == nil:
		return newValidationError("line", betting.ErrMissingLine)
	case r.Kind.IsMoneyline() && r.Line != nil:
		return &ValidationError{Field: "line", Reason: "moneyline bets do not take a line"}
	case r.Line != nil:
		if err := validateLine("line", *r.Line); err != nil {
			return err
		}
	}

	switch {
	case r.Kind.IsSpread() && r.Line.IsZero():
		return &ValidationError{Field: "line", Reason: "spread line cannot be zero"}
	case r.Kind.IsTotal() && !r.Line.IsPositive():
		return &ValidationError{Field: "line", Reason: "totals line must be positive"}
	}

	return nil
}

func validateOdds(field string, odds decimal.Decimal) error {
	if err := betting.ValidateOdds(odds); err != nil {
		return newValidationError(field, err)
	}
	if odds.Abs().GreaterThanOrEqual(maxOddsMagnitude) {
		return &ValidationError{Field: field, Reason: "odds are out of range"}
	}
	return nil
}

func validateLine(field string, line decimal.Decimal) error {
	if !betting.HasMoneyPrecision(line) {
		return newValidationError(field, betting.ErrTooPrecise)
	}
	if line.Abs().GreaterThanOrEqual(maxLineMagnitude) {
		return &ValidationError{Field: field, Reason: "line is out of range"}
	}
	return nil
}

type wagerService struct {
	uowFactory UnitOfWorkFactory
}

// NewWagerService creates a new wager service
func NewWagerService(uowFactory UnitOfWorkFactory) WagerService {
	return &wagerService{
		uowFactory: uowFactory,
	}
}

// PlaceWager books a wager: the payout is priced once here and stored on the wager
func (s *wagerService) PlaceWager(ctx context.Context, req PlaceWagerRequest) (*models.Wager, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payout, err := betting.CalculatePayout(req.Stake, req.Odds)
	if err != nil {
		return nil, newValidationError("odds", err)
	}
	if payout.GreaterThanOrEqual(maxMoneyAmount) {
		return nil, &ValidationError{Field: "stake", Reason: "payout is too large"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin placement", Err: err}
	}
	defer uow.Rollback()

	// Shared event lock first, then the account row: settlement takes the
	// exclusive event lock before any account, so the order is the same everywhere.
	if err := uow.EventRepository().LockForPlacement(ctx, req.EventID); err != nil {
		return nil, &PersistenceError{Op: "lock event", Err: err}
	}

	event, err := uow.EventRepository().GetByID(ctx, req.EventID)
	if err != nil {
		return nil, &PersistenceError{Op: "load event", Err: err}
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if !event.AcceptsWagers() {
		return nil, &ValidationError{Field: "eventId", Reason: "event has already been completed"}
	}

	account, err := uow.AccountRepository().GetForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, &PersistenceError{Op: "lock account", Err: err}
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.CanAfford(req.Stake) {
		return nil, &InsufficientFundsError{AccountID: account.ID, Balance: account.Balance, Stake: req.Stake}
	}

	// Every pending payout may be credited; the balance must still fit once they all are.
	pending, err := uow.WagerRepository().PendingPayoutTotal(ctx, account.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "sum pending payouts", Err: err}
	}
	if account.Balance.Sub(req.Stake).Add(pending).Add(payout).GreaterThanOrEqual(maxMoneyAmount) {
		return nil, &ValidationError{Field: "stake", Reason: "potential payout would exceed the maximum balance"}
	}

	newBalance, err := uow.AccountRepository().DeductStake(ctx, account.ID, req.Stake)
	if err != nil {
		return nil, fmt.Errorf("failed to deduct stake: %w", err)
	}

	wager := &models.Wager{
		AccountID: account.ID,
		EventID:   event.ID,
		Kind:      req.Kind,
		Odds:      req.Odds,
		Stake:     req.Stake,
		Line:      req.Line,
		Payout:    payout,
		Status:    models.WagerStatusPending,
	}
	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, &PersistenceError{Op: "insert wager", Err: err}
	}

	relatedType := models.RelatedTypeWager
	history := &models.BalanceHistory{
		AccountID:       account.ID,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    req.Stake.Neg(),
		TransactionType: models.TransactionTypeWagerPlaced,
		TransactionMetadata: map[string]any{
			"wager_id": wager.ID,
			"event_id": event.ID,
			"kind":     string(wager.Kind),
			"odds":     wager.Odds.String(),
			"payout":   wager.Payout.StringFixed(2),
		},
		RelatedID:   &wager.ID,
		RelatedType: &relatedType,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, &PersistenceError{Op: "record placement", Err: err}
	}

	uow.EventBus().Publish(events.WagerPlacedEvent{
		WagerID:   wager.ID,
		AccountID: wager.AccountID,
		EventID:   wager.EventID,
		Kind:      wager.Kind,
		Stake:     wager.Stake,
		Payout:    wager.Payout,
	})

	if err := uow.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit placement", Err: err}
	}

	metrics.WagerPlaced(string(wager.Kind))
	log.WithFields(log.Fields{
		"wagerID":   wager.ID,
		"accountID": wager.AccountID,
		"eventID":   wager.EventID,
		"kind":      wager.Kind,
		"stake":     wager.Stake.StringFixed(2),
		"payout":    wager.Payout.StringFixed(2),
	}).Info("Wager placed")

	return wager, nil
}

// GetWager returns a single wager
func (s *wagerService) GetWager(ctx context.Context, id int64) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "load wager", Err: err}
	}
	if wager == nil {
		return nil, ErrWagerNotFound
	}
	return wager, nil
}

// ListWagers returns the newest wagers of an account
func (s *wagerService) ListWagers(ctx context.Context, accountID int64, limit int) ([]*models.Wager, error) {
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

	wagers, err := uow.WagerRepository().GetByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list wagers", Err: err}
	}
	return wagers, nil
}
