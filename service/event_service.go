package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sportsbook/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// settleCandidateLimit bounds one poll tick
const settleCandidateLimit = 200

// CreateEventRequest describes an event imported from the upstream schedule
type CreateEventRequest struct {
	ExternalID    string
	HomeTeam      string
	AwayTeam      string
	ScheduledDate time.Time
}

// SetExternalIDRequest attaches a provider id to an event imported without one,
// or corrects a wrong one. The event is located by its pairing and date.
type SetExternalIDRequest struct {
	HomeTeam      string
	AwayTeam      string
	ScheduledDate time.Time
	ExternalID    string
}

type eventService struct {
	uowFactory UnitOfWorkFactory
}

// NewEventService creates a new event service
func NewEventService(uowFactory UnitOfWorkFactory) EventService {
	return &eventService{uowFactory: uowFactory}
}

// CreateEvent imports a scheduled event
func (s *eventService) CreateEvent(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	switch {
	case strings.TrimSpace(req.ExternalID) == "":
		return nil, &ValidationError{Field: "externalId", Reason: "external id cannot be empty"}
	case strings.TrimSpace(req.HomeTeam) == "" || strings.TrimSpace(req.AwayTeam) == "":
		return nil, &ValidationError{Field: "teams", Reason: "home and away teams are required"}
	case req.ScheduledDate.IsZero():
		return nil, &ValidationError{Field: "scheduledDate", Reason: "scheduled date is required"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin event import", Err: err}
	}
	defer uow.Rollback()

	event := &models.Event{
		ExternalID:    strings.TrimSpace(req.ExternalID),
		HomeTeam:      strings.TrimSpace(req.HomeTeam),
		AwayTeam:      strings.TrimSpace(req.AwayTeam),
		ScheduledDate: truncateToDate(req.ScheduledDate),
	}
	if err := uow.EventRepository().Create(ctx, event); err != nil {
		return nil, &PersistenceError{Op: "insert event", Err: err}
	}

	if err := uow.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit event import", Err: err}
	}

	log.WithFields(log.Fields{
		"eventID":    event.ID,
		"externalID": event.ExternalID,
		"date":       event.ScheduledDate.Format(time.DateOnly),
	}).Info("Event imported")

	return event, nil
}

// GetEvent returns a single event
func (s *eventService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.getOne(ctx, func(repo EventRepository) (*models.Event, error) {
		return repo.GetByID(ctx, id)
	})
}

// GetEventByExternalID returns the event with the given provider id
func (s *eventService) GetEventByExternalID(ctx context.Context, externalID string) (*models.Event, error) {
	return s.getOne(ctx, func(repo EventRepository) (*models.Event, error) {
		return repo.GetByExternalID(ctx, externalID)
	})
}

// GetEventByTeams returns the event of a home/away pairing on a UTC date
func (s *eventService) GetEventByTeams(ctx context.Context, homeTeam, awayTeam string, date time.Time) (*models.Event, error) {
	return s.getOne(ctx, func(repo EventRepository) (*models.Event, error) {
		return repo.GetByTeamsAndDate(ctx, strings.TrimSpace(homeTeam), strings.TrimSpace(awayTeam), truncateToDate(date))
	})
}

// SetExternalID attaches a provider id to the event found by teams and date.
// Completed events keep the id they were settled under.
func (s *eventService) SetExternalID(ctx context.Context, req SetExternalIDRequest) (*models.Event, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	switch {
	case externalID == "":
		return nil, &ValidationError{Field: "externalId", Reason: "external id cannot be empty"}
	case strings.TrimSpace(req.HomeTeam) == "" || strings.TrimSpace(req.AwayTeam) == "":
		return nil, &ValidationError{Field: "teams", Reason: "home and away teams are required"}
	case req.ScheduledDate.IsZero():
		return nil, &ValidationError{Field: "scheduledDate", Reason: "scheduled date is required"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin external id update", Err: err}
	}
	defer uow.Rollback()

	repo := uow.EventRepository()
	event, err := repo.GetByTeamsAndDate(ctx, strings.TrimSpace(req.HomeTeam), strings.TrimSpace(req.AwayTeam), truncateToDate(req.ScheduledDate))
	if err != nil {
		return nil, &PersistenceError{Op: "load event", Err: err}
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	updated, err := repo.UpdateExternalID(ctx, event.ID, externalID)
	if err != nil {
		return nil, &PersistenceError{Op: "update external id", Err: err}
	}
	if !updated {
		return nil, &ValidationError{Field: "eventId", Reason: fmt.Sprintf("event %d is already settled", event.ID)}
	}

	if err := uow.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit external id update", Err: err}
	}

	log.WithFields(log.Fields{
		"eventID":    event.ID,
		"previousID": event.ExternalID,
		"externalID": externalID,
	}).Info("Event external id updated")

	event.ExternalID = externalID
	return event, nil
}

// UpdateQuotes posts the current prices of an event. Nil prices are left as they were.
func (s *eventService) UpdateQuotes(ctx context.Context, eventID int64, quotes models.QuoteBoard) (*models.Event, error) {
	if err := validateQuotes(quotes); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin quote update", Err: err}
	}
	defer uow.Rollback()

	repo := uow.EventRepository()
	event, err := repo.UpdateQuotes(ctx, eventID, quotes)
	if err != nil {
		return nil, &PersistenceError{Op: "update quotes", Err: err}
	}
	if event == nil {
		existing, err := repo.GetByID(ctx, eventID)
		if err != nil {
			return nil, &PersistenceError{Op: "load event", Err: err}
		}
		if existing == nil {
			return nil, ErrEventNotFound
		}
		return nil, &ValidationError{Field: "eventId", Reason: fmt.Sprintf("event %d is already settled", eventID)}
	}

	if err := uow.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit quote update", Err: err}
	}

	log.WithField("eventID", eventID).Debug("Event quotes updated")
	return event, nil
}

func validateQuotes(q models.QuoteBoard) error {
	odds := []struct {
		field string
		value *decimal.Decimal
	}{
		{"homeSpreadOdds", q.HomeSpreadOdds},
		{"awaySpreadOdds", q.AwaySpreadOdds},
		{"homeMoneyline", q.HomeMoneyline},
		{"awayMoneyline", q.AwayMoneyline},
		{"overOdds", q.OverOdds},
		{"underOdds", q.UnderOdds},
	}
	quoted := false
	for _, o := range odds {
		if o.value == nil {
			continue
		}
		quoted = true
		if err := validateOdds(o.field, *o.value); err != nil {
			return err
		}
	}

	if q.HomeSpread != nil {
		quoted = true
		if err := validateLine("homeSpread", *q.HomeSpread); err != nil {
			return err
		}
	}
	if q.TotalLine != nil {
		quoted = true
		if err := validateLine("totalLine", *q.TotalLine); err != nil {
			return err
		}
		if !q.TotalLine.IsPositive() {
			return &ValidationError{Field: "totalLine", Reason: "totals line must be positive"}
		}
	}

	if !quoted {
		return &ValidationError{Field: "quotes", Reason: "at least one price is required"}
	}
	return nil
}

// ListEventsByDate returns the events scheduled on a UTC date
func (s *eventService) ListEventsByDate(ctx context.Context, date time.Time) ([]*models.Event, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	events, err := uow.EventRepository().GetByDate(ctx, truncateToDate(date))
	if err != nil {
		return nil, &PersistenceError{Op: "list events", Err: err}
	}
	return events, nil
}

// ListSettleCandidates returns uncompleted events scheduled on or before asOf
func (s *eventService) ListSettleCandidates(ctx context.Context, asOf time.Time) ([]*models.Event, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	events, err := uow.EventRepository().GetSettleCandidates(ctx, truncateToDate(asOf), settleCandidateLimit)
	if err != nil {
		return nil, &PersistenceError{Op: "list settle candidates", Err: err}
	}
	return events, nil
}

func (s *eventService) getOne(ctx context.Context, load func(EventRepository) (*models.Event, error)) (*models.Event, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, &PersistenceError{Op: "begin read", Err: err}
	}
	defer uow.Rollback()

	event, err := load(uow.EventRepository())
	if err != nil {
		return nil, &PersistenceError{Op: "load event", Err: err}
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// truncateToDate drops the clock part, keeping the UTC calendar date
func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
