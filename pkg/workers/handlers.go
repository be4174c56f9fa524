package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tindevelopers/recall-sub000/pkg/bot"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
	"github.com/tindevelopers/recall-sub000/pkg/transcript"
)

// Enricher runs downstream processing over a completed artifact.
type Enricher interface {
	Enrich(ctx context.Context, artifactID uuid.UUID) error
}

// SyncHandler runs bounded calendar resynchronizations.
func SyncHandler(sync *calendar.Synchronizer, calendars calendar.CalendarStore, lookback time.Duration) MessageHandler {
	return func(ctx context.Context, msg queues.Message) error {
		m, ok := msg.(*queues.SyncMessage)
		if !ok {
			return fmt.Errorf("%w: expected sync message", queues.ErrUnknownMessageType)
		}
		cal, err := calendars.GetCalendar(ctx, m.CalendarID)
		if err != nil {
			if errors.IsNotFound(err) {
				// Calendar was disconnected after enqueue; nothing to sync.
				return nil
			}
			return err
		}
		sync.Sync(ctx, cal, time.Now().Add(-lookback), m.Trigger)
		return nil
	}
}

// ReconcileHandler applies desired bot state for a touched event.
func ReconcileHandler(scheduler *bot.Scheduler, calendars calendar.CalendarStore, events calendar.EventStore) MessageHandler {
	return func(ctx context.Context, msg queues.Message) error {
		m, ok := msg.(*queues.ReconcileMessage)
		if !ok {
			return fmt.Errorf("%w: expected reconcile message", queues.ErrUnknownMessageType)
		}
		ev, err := events.GetEvent(ctx, m.EventID)
		if err != nil {
			if errors.IsNotFound(err) {
				// Deleted between sync and reconcile; the deletion path
				// already removed any bot.
				return nil
			}
			return err
		}
		cal, err := calendars.GetCalendar(ctx, ev.CalendarID)
		if err != nil {
			return err
		}
		return scheduler.Reconcile(ctx, cal, ev)
	}
}

// IngestHandler feeds bot webhook deliveries into the transcript pipeline.
func IngestHandler(pipeline *transcript.Pipeline) MessageHandler {
	return func(ctx context.Context, msg queues.Message) error {
		m, ok := msg.(*queues.IngestMessage)
		if !ok {
			return fmt.Errorf("%w: expected ingest message", queues.ErrUnknownMessageType)
		}
		return pipeline.Ingest(ctx, m.EventType, m.Payload)
	}
}

// EnrichHandler runs downstream enrichment over completed artifacts.
func EnrichHandler(enricher Enricher, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg queues.Message) error {
		m, ok := msg.(*queues.EnrichMessage)
		if !ok {
			return fmt.Errorf("%w: expected enrich message", queues.ErrUnknownMessageType)
		}
		if err := enricher.Enrich(ctx, m.ArtifactID); err != nil {
			return err
		}
		logger.Debug("artifact enriched", logging.F("artifact_id", m.ArtifactID.String()))
		return nil
	}
}
