// Package bot drives the idempotent bot lifecycle against the remote
// scheduling API: ensure a bot is present for eligible upcoming meetings,
// ensure it is absent otherwise.
package bot

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
	"github.com/tindevelopers/recall-sub000/pkg/recallai"
)

// MinJoinLead is the minimum interval between the bot's configured join time
// and the meeting start. The provider rejects shorter leads for scheduled
// bots, so a smaller calendar-configured lead is floored to this.
const MinJoinLead = 10 * time.Minute

// realtimeEvents lists the event types the ingestion pipeline consumes from
// a realtime delivery subscription.
var realtimeEvents = []string{"transcript.partial_data", "transcript.data"}

// Provider is the remote scheduling surface the scheduler consumes.
type Provider interface {
	ScheduleBot(ctx context.Context, remoteEventID, dedupKey string, cfg recallai.BotConfig) (json.RawMessage, error)
	RemoveBot(ctx context.Context, remoteEventID string) error
}

// Scheduler reconciles an event's desired bot state with the provider.
type Scheduler struct {
	provider      Provider
	events        calendar.EventStore
	publicBaseURL string
	logger        logging.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// PublicBaseURL is the externally reachable callback base for realtime
	// delivery subscriptions. Empty disables them.
	PublicBaseURL string

	Logger  logging.Logger
	Metrics *observability.Metrics

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(provider Provider, events calendar.EventStore, opts SchedulerOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		provider:      provider,
		events:        events,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}
}

// Reconcile brings the provider's bot state for the event in line with its
// combined eligibility and meeting-link state. Remote failures propagate to
// the caller so the enclosing retry-capable job can retry; repeated
// invocations converge because the scheduling call is keyed by a stable
// deduplication key derived from the remote event id.
func (s *Scheduler) Reconcile(ctx context.Context, cal *calendar.Calendar, ev *calendar.CalendarEvent) error {
	log := s.logger.With(
		logging.F("event_id", ev.ID.String()),
		logging.F("remote_event_id", ev.RemoteEventID),
	)

	if !ev.ShouldRecord() || !ev.HasMeetingURL() {
		// Must be safe when no bot exists; the client treats 404 as done.
		if err := s.provider.RemoveBot(ctx, ev.RemoteEventID); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.BotsRemoved.Inc()
		}
		log.Debug("ensured bot absent")
		return nil
	}

	// Checked at call time, not enqueue time: queueing introduces delay and
	// this race is expected, not an error.
	if ev.Started(s.now()) {
		log.Info("event already started, skipping bot scheduling",
			logging.F("start_time", ev.StartTime))
		if s.metrics != nil {
			s.metrics.StaleSkips.Inc()
		}
		return nil
	}

	cfg := s.buildConfig(cal, ev)
	state, err := s.provider.ScheduleBot(ctx, ev.RemoteEventID, DedupKey(ev.RemoteEventID), cfg)
	if err != nil {
		return err
	}

	// The returned state is the only place bot identifiers become known
	// locally.
	if err := s.events.SetBotState(ctx, ev.ID, state); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.BotsScheduled.Inc()
	}
	log.Info("ensured bot present", logging.F("join_at", cfg.JoinAt))
	return nil
}

// DedupKey returns the stable deduplication key for an event's bot. It is
// derived from the remote event id, never from a job or request id, so
// repeated scheduling calls for the same event update one bot instead of
// creating duplicates.
func DedupKey(remoteEventID string) string {
	return "calendar-event-" + remoteEventID
}

// buildConfig assembles the provider-specific bot configuration from the
// calendar's settings and the event's overrides.
func (s *Scheduler) buildConfig(cal *calendar.Calendar, ev *calendar.CalendarEvent) recallai.BotConfig {
	lead := time.Duration(cal.Bot.JoinLeadMinutes) * time.Minute
	if lead < MinJoinLead {
		lead = MinJoinLead
	}

	cfg := recallai.BotConfig{
		BotName:      cal.Bot.Name,
		BotAvatarURL: cal.Bot.AvatarURL,
		JoinAt:       ev.StartTime.Add(-lead),
		RecordVideo:  cal.Recording.RecordVideo,
		RecordAudio:  cal.Recording.RecordAudio,
	}

	mode := ev.EffectiveTranscriptionMode(cal)
	language := cal.Recording.Language

	// Low-latency transcription is only reliable when the language is left
	// to auto-detection or is English; everything else goes through the
	// accuracy-prioritized engine.
	provider := recallai.TranscriptProviderAccuracy
	if mode == calendar.TranscriptionRealtime && (language == "" || language == "en") {
		provider = recallai.TranscriptProviderLowLatency
	}
	cfg.Transcription = &recallai.Transcription{
		Provider: provider,
		Language: language,
	}

	if mode == calendar.TranscriptionRealtime && s.publicBaseURL != "" {
		cfg.RealtimeEndpoints = []recallai.RealtimeEndpoint{{
			Type:   "webhook",
			URL:    s.publicBaseURL + "/webhooks/bot",
			Events: realtimeEvents,
		}}
	}

	return cfg
}
