package calendar

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
	"github.com/tindevelopers/recall-sub000/pkg/recallai"
)

// Sync triggers, used as metric labels and for logging.
const (
	TriggerSweep    = "sweep"
	TriggerWebhook  = "webhook"
	TriggerOnDemand = "on_demand"
	TriggerManual   = "manual"
)

// RemoteLister is the provider surface the synchronizer consumes.
type RemoteLister interface {
	ListCalendarEvents(ctx context.Context, remoteCalendarID string, updatedSince time.Time) ([]recallai.CalendarEvent, error)
}

// ReconcileEnqueuer submits bot-reconciliation work for a touched event.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, eventID uuid.UUID) error
}

// SynchronizerOptions configures a Synchronizer.
type SynchronizerOptions struct {
	// Reconcile receives every touched event id. Optional.
	Reconcile ReconcileEnqueuer

	// Lookback is the rolling watermark window for sweep and webhook syncs.
	Lookback time.Duration

	// ThrottleTTL bounds on-demand syncs per user.
	ThrottleTTL time.Duration

	Logger  logging.Logger
	Metrics *observability.Metrics

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Synchronizer reconciles the local event mirror with the remote provider.
// It is safe to invoke concurrently for the same calendar: upserts are keyed
// by (calendar id, remote event id), so duplicate triggers converge.
type Synchronizer struct {
	remote    RemoteLister
	calendars CalendarStore
	events    EventStore
	reconcile ReconcileEnqueuer
	throttle  *Throttle
	lookback  time.Duration
	logger    logging.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(remote RemoteLister, calendars CalendarStore, events EventStore, opts SynchronizerOptions) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.ThrottleTTL <= 0 {
		opts.ThrottleTTL = 5 * time.Minute
	}
	return &Synchronizer{
		remote:    remote,
		calendars: calendars,
		events:    events,
		reconcile: opts.Reconcile,
		throttle:  NewThrottle(opts.ThrottleTTL, opts.Now),
		lookback:  opts.Lookback,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

// Sync pulls all remote events for the calendar updated at or after the
// watermark and reconciles them into the mirror. A remote-fetch failure
// surfaces as a zero-length result, not an error, so one bad calendar cannot
// halt a sweep over its siblings.
func (s *Synchronizer) Sync(ctx context.Context, cal *Calendar, sinceWatermark time.Time, trigger string) SyncResult {
	log := s.logger.With(
		logging.F("calendar_id", cal.ID.String()),
		logging.F("trigger", trigger),
	)

	start := s.now()
	remoteEvents, err := s.remote.ListCalendarEvents(ctx, cal.RemoteID, sinceWatermark)
	if err != nil {
		if recallai.IsUnauthorized(err) {
			log.Warn("remote no longer authorizes calendar, marking disconnected", logging.Err(err))
			if statusErr := s.calendars.SetCalendarStatus(ctx, cal.ID, StatusDisconnected); statusErr != nil {
				log.Error("failed to mark calendar disconnected", logging.Err(statusErr))
			}
		} else {
			log.Warn("remote event fetch failed", logging.Err(err))
		}
		s.countSync(trigger, "error", start)
		return SyncResult{}
	}

	var result SyncResult
	for _, remote := range remoteEvents {
		if remote.IsDeleted {
			if err := s.events.DeleteEvent(ctx, cal.ID, remote.ID); err != nil {
				log.Error("failed to delete mirror event", logging.F("remote_event_id", remote.ID), logging.Err(err))
				continue
			}
			if s.metrics != nil {
				s.metrics.EventsDeleted.Inc()
			}
			result.Deleted = append(result.Deleted, remote.ID)
			continue
		}

		id, err := s.upsertAndEvaluate(ctx, cal, remote, log)
		if err != nil {
			log.Error("failed to reconcile mirror event", logging.F("remote_event_id", remote.ID), logging.Err(err))
			continue
		}
		result.Upserted = append(result.Upserted, id)
	}

	s.countSync(trigger, "ok", start)
	log.Debug("sync complete",
		logging.F("upserted", len(result.Upserted)),
		logging.F("deleted", len(result.Deleted)),
	)
	return result
}

// upsertAndEvaluate mirrors one remote record, recomputes its eligibility,
// and hands the touched event to the bot reconciler.
func (s *Synchronizer) upsertAndEvaluate(ctx context.Context, cal *Calendar, remote recallai.CalendarEvent, log logging.Logger) (uuid.UUID, error) {
	mirror := &CalendarEvent{
		CalendarID:    cal.ID,
		RemoteEventID: remote.ID,
		StartTime:     remote.StartTime,
		EndTime:       remote.EndTime,
		MeetingURL:    remote.MeetingURL,
		RawPayload:    json.RawMessage(remote.Raw),
	}

	id, err := s.events.UpsertEvent(ctx, mirror)
	if err != nil {
		return uuid.Nil, err
	}
	if s.metrics != nil {
		s.metrics.EventsUpserted.Inc()
	}

	mirror.ID = id
	eligible, evaluated, err := Evaluate(cal, mirror, s.now())
	switch {
	case err != nil:
		// Unsupported platform or malformed attendee data is a hard
		// failure for this event's evaluation pass; it must be surfaced,
		// not defaulted to "not eligible".
		log.Error("eligibility evaluation failed",
			logging.F("remote_event_id", remote.ID), logging.Err(err))
	case evaluated:
		if err := s.events.SetAutoRecord(ctx, id, eligible); err != nil {
			return uuid.Nil, err
		}
	}

	if s.reconcile != nil {
		if err := s.reconcile.EnqueueReconcile(ctx, id); err != nil {
			log.Error("failed to enqueue bot reconciliation",
				logging.F("event_id", id.String()), logging.Err(err))
		}
	}

	return id, nil
}

// Sweep runs an incremental sync over all connected calendars using the
// rolling lookback watermark. It is the correctness backstop against dropped
// webhooks. A failed sync for one calendar never aborts its siblings.
func (s *Synchronizer) Sweep(ctx context.Context) {
	calendars, err := s.calendars.ListConnectedCalendars(ctx)
	if err != nil {
		s.logger.Error("sweep failed to list calendars", logging.Err(err))
		return
	}
	if s.metrics != nil {
		s.metrics.SweepCalendars.Set(float64(len(calendars)))
	}

	watermark := s.now().Add(-s.lookback)
	for i := range calendars {
		if ctx.Err() != nil {
			return
		}
		s.Sync(ctx, &calendars[i], watermark, TriggerSweep)
	}
}

// SyncOnDemand syncs all of a user's calendars when they view meeting data,
// throttled per user. The guard is best-effort; a duplicate sync that slips
// through is safe because upserts are idempotent.
func (s *Synchronizer) SyncOnDemand(ctx context.Context, userID uuid.UUID) {
	if !s.throttle.TryAcquire(userID) {
		s.logger.Debug("on-demand sync throttled", logging.F("user_id", userID.String()))
		return
	}
	defer s.throttle.Release(userID)

	calendars, err := s.calendars.ListCalendarsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("on-demand sync failed to list calendars",
			logging.F("user_id", userID.String()), logging.Err(err))
		return
	}

	watermark := s.now().Add(-s.lookback)
	for i := range calendars {
		s.Sync(ctx, &calendars[i], watermark, TriggerOnDemand)
	}
}

func (s *Synchronizer) countSync(trigger, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SyncsTotal.WithLabelValues(trigger, status).Inc()
	s.metrics.SyncSeconds.WithLabelValues(trigger).Observe(s.now().Sub(start).Seconds())
}
