package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"sportsbook/betting"
	"sportsbook/config"
	"sportsbook/events"
	"sportsbook/metrics"
	"sportsbook/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	uowFactory   UnitOfWorkFactory
	provider     ScoreProvider
	maxAttempts  int
	retryBackoff time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, provider ScoreProvider, cfg *config.Config) SettlementService {
	maxAttempts := cfg.SettlementMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &settlementService{
		uowFactory:   uowFactory,
		provider:     provider,
		maxAttempts:  maxAttempts,
		retryBackoff: cfg.SettlementRetryBackoff,
		fetchTimeout: cfg.ScoreFetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SettleEvent grades every pending wager of an event against one final score
// snapshot and applies the results in a single transaction.
//
// A non-terminal snapshot is not an error: the result carries the not_ready
// status and nothing is written. Running it again for a settled event finds no
// pending wagers and changes nothing.
func (s *settlementService) SettleEvent(ctx context.Context, eventID int64) (*models.SettlementResult, error) {
	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"eventID": eventID,
		"runID":   runID,
	})

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		metrics.SettlementRun("failed")
		return nil, err
	}

	snapshot, err := s.snapshotFor(ctx, event)
	if err != nil {
		metrics.SettlementRun("failed")
		logger.WithError(err).Warn("Score fetch failed, nothing settled")
		return nil, err
	}

	if !snapshot.Terminal {
		metrics.SettlementRun(string(models.SettlementStatusNotReady))
		logger.Debug("Event not final yet")
		return &models.SettlementResult{
			EventID: eventID,
			RunID:   runID,
			Status:  models.SettlementStatusNotReady,
		}, nil
	}

	for attempt := 1; ; attempt++ {
		result, err := s.settleOnce(ctx, event, snapshot, runID)
		if err == nil {
			metrics.SettlementRun(string(result.Status))
			for _, outcome := range result.Outcomes {
				metrics.WagerSettled(string(outcome.Verdict))
			}
			logger.WithFields(log.Fields{
				"settled":   result.SettledCount,
				"homeScore": result.HomeScore,
				"awayScore": result.AwayScore,
				"attempt":   attempt,
			}).Info("Event settled")
			return result, nil
		}

		if !errors.Is(err, ErrConcurrencyConflict) {
			metrics.SettlementRun("failed")
			logger.WithError(err).Error("Settlement failed, transaction rolled back")
			var persistenceErr *PersistenceError
			var validationErr *ValidationError
			if errors.As(err, &persistenceErr) || errors.As(err, &validationErr) {
				return nil, err
			}
			return nil, &PersistenceError{Op: "settle event", Err: err}
		}

		if attempt >= s.maxAttempts {
			metrics.SettlementRun("failed")
			logger.WithError(err).WithField("attempts", attempt).Error("Settlement retries exhausted")
			return nil, fmt.Errorf("settlement of event %d gave up after %d attempts: %w", eventID, attempt, err)
		}

		metrics.SettlementRetry()
		logger.WithError(err).WithField("attempt", attempt).Warn("Settlement conflicted, retrying")

		select {
		case <-ctx.Done():
			return nil, &PersistenceError{Op: "settle event", Err: ctx.Err()}
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
}

func (s *settlementService) loadEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByID(ctx, eventID)
	if err != nil {
		return nil, &PersistenceError{Op: "load event", Err: err}
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// snapshotFor returns the score to grade against. A completed event already
// has its final score on record, so the upstream feed is not consulted again.
func (s *settlementService) snapshotFor(ctx context.Context, event *models.Event) (*models.ScoreSnapshot, error) {
	if event.Completed && event.HomeScore != nil && event.AwayScore != nil {
		return &models.ScoreSnapshot{
			ExternalID: event.ExternalID,
			Terminal:   true,
			HomeScore:  *event.HomeScore,
			AwayScore:  *event.AwayScore,
			FetchedAt:  s.now(),
		}, nil
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	started := time.Now()
	snapshot, err := s.provider.Fetch(fetchCtx, event.ExternalID)
	if err != nil {
		var fetchErr *ExternalFetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &ExternalFetchError{Kind: FetchTransient, ExternalID: event.ExternalID, Err: err}
		}
		metrics.ObserveScoreFetch(string(fetchErr.Kind), time.Since(started))
		return nil, fetchErr
	}
	metrics.ObserveScoreFetch("ok", time.Since(started))

	if snapshot.HomeScore < 0 || snapshot.AwayScore < 0 {
		return nil, &ExternalFetchError{
			Kind:       FetchMalformed,
			ExternalID: event.ExternalID,
			Err:        fmt.Errorf("negative score %d-%d", snapshot.HomeScore, snapshot.AwayScore),
		}
	}

	return snapshot, nil
}

func (s *settlementService) settleOnce(ctx context.Context, event *models.Event, snapshot *models.ScoreSnapshot, runID string) (*models.SettlementResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer uow.Rollback()

	if err := uow.EventRepository().LockForSettlement(ctx, event.ID); err != nil {
		return nil, fmt.Errorf("failed to lock event %d: %w", event.ID, err)
	}

	wagers, err := uow.WagerRepository().GetPendingByEventForUpdate(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending wagers: %w", err)
	}

	result := &models.SettlementResult{
		EventID:   event.ID,
		RunID:     runID,
		Status:    models.SettlementStatusSettled,
		HomeScore: snapshot.HomeScore,
		AwayScore: snapshot.AwayScore,
		Outcomes:  make([]*models.WagerOutcome, 0, len(wagers)),
	}
	settledAt := s.now()

	if len(wagers) > 0 {
		accountIDs := make([]int64, 0, len(wagers))
		for _, wager := range wagers {
			accountIDs = append(accountIDs, wager.AccountID)
		}
		slices.Sort(accountIDs)
		accountIDs = slices.Compact(accountIDs)

		accounts, err := uow.AccountRepository().LockForUpdate(ctx, accountIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to lock accounts: %w", err)
		}

		for _, wager := range wagers {
			if _, ok := accounts[wager.AccountID]; !ok {
				return nil, &PersistenceError{Op: "lock accounts", Err: fmt.Errorf("account %d of wager %d is missing", wager.AccountID, wager.ID)}
			}

			verdict, err := betting.GradeWager(wager, snapshot)
			if err != nil {
				return nil, newValidationError("wager", fmt.Errorf("wager %d: %w", wager.ID, err))
			}

			outcome, err := ApplyVerdict(ctx, uow, wager, verdict, settledAt)
			if err != nil {
				return nil, err
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}
	}
	result.SettledCount = len(result.Outcomes)

	if err := uow.EventRepository().MarkCompleted(ctx, event.ID, snapshot.HomeScore, snapshot.AwayScore, settledAt); err != nil {
		return nil, fmt.Errorf("failed to mark event %d completed: %w", event.ID, err)
	}

	if result.SettledCount > 0 {
		uow.EventBus().Publish(events.EventSettledEvent{
			EventID:    event.ID,
			ExternalID: event.ExternalID,
			RunID:      runID,
			HomeScore:  snapshot.HomeScore,
			AwayScore:  snapshot.AwayScore,
			Outcomes:   result.Outcomes,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return result, nil
}
