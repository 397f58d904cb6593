package worker

import (
	"context"
	"fmt"
	"time"

	"sportsbook/models"
	"sportsbook/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PollSummary counts what one poll tick did
type PollSummary struct {
	Candidates int
	Settled    int
	NotReady   int
	Failed     int
}

// SettlementPoller periodically settles events whose games should be over
type SettlementPoller struct {
	events     service.EventService
	settlement service.SettlementService
	schedule   string
	workers    int
	now        func() time.Time
}

// NewSettlementPoller creates a poller that runs on the given cron schedule
func NewSettlementPoller(events service.EventService, settlement service.SettlementService, schedule string, workers int) *SettlementPoller {
	if workers < 1 {
		workers = 1
	}
	return &SettlementPoller{
		events:     events,
		settlement: settlement,
		schedule:   schedule,
		workers:    workers,
		now:        time.Now,
	}
}

// Start schedules the poller and returns a function that stops it and
// waits for an in-flight tick to finish
func (p *SettlementPoller) Start(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.RunOnce(ctx); err != nil {
			log.Errorf("Settlement poll failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid settlement poll schedule %q: %w", p.schedule, err)
	}

	c.Start()
	log.WithFields(log.Fields{
		"schedule": p.schedule,
		"workers":  p.workers,
	}).Info("Settlement poller started")

	return func() {
		<-c.Stop().Done()
		log.Info("Settlement poller stopped")
	}, nil
}

// RunOnce settles every candidate event scheduled on or before today.
// Individual failures are logged; the next tick picks the event up again.
func (p *SettlementPoller) RunOnce(ctx context.Context) (*PollSummary, error) {
	candidates, err := p.events.ListSettleCandidates(ctx, p.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list settle candidates: %w", err)
	}

	summary := &PollSummary{Candidates: len(candidates)}
	if len(candidates) == 0 {
		log.Debug("No events awaiting settlement")
		return summary, nil
	}

	results := make([]error, len(candidates))
	ready := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, event := range candidates {
		g.Go(func() error {
			result, err := p.settlement.SettleEvent(gctx, event.ID)
			results[i] = err
			ready[i] = err == nil && result.IsReady()
			p.logOutcome(event, result, err)
			return nil
		})
	}
	_ = g.Wait()

	for i := range candidates {
		switch {
		case results[i] != nil:
			summary.Failed++
		case ready[i]:
			summary.Settled++
		default:
			summary.NotReady++
		}
	}

	log.WithFields(log.Fields{
		"candidates": summary.Candidates,
		"settled":    summary.Settled,
		"notReady":   summary.NotReady,
		"failed":     summary.Failed,
	}).Info("Completed settlement poll")

	return summary, nil
}

func (p *SettlementPoller) logOutcome(event *models.Event, result *models.SettlementResult, err error) {
	fields := log.Fields{
		"eventID":    event.ID,
		"externalID": event.ExternalID,
	}

	switch {
	case err != nil && service.IsRetryableFetch(err):
		log.WithFields(fields).WithError(err).Warn("Score fetch failed, will retry next poll")
	case err != nil:
		log.WithFields(fields).WithError(err).Error("Failed to settle event")
	case !result.IsReady():
		log.WithFields(fields).Debug("Event not final yet")
	default:
		fields["settled"] = result.SettledCount
		log.WithFields(fields).Info("Settled event")
	}
}
