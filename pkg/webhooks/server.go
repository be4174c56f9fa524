// Package webhooks exposes the HTTP intake surface: provider webhook
// endpoints, health, metrics, and version.
package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tindevelopers/recall-sub000/pkg/buildinfo"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// SyncEnqueuer submits bounded resynchronization work.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, calendarID uuid.UUID, trigger string, priority queues.Priority) error
}

// IngestEnqueuer submits bot payloads to the transcript pipeline.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// OnDemandSyncer runs a throttled sync of a user's calendars.
type OnDemandSyncer interface {
	SyncOnDemand(ctx context.Context, userID uuid.UUID)
}

// HealthChecker reports backend connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to HealthChecker.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server handles webhook deliveries from the recording provider.
type Server struct {
	calendars calendar.CalendarStore
	sync      SyncEnqueuer
	ingest    IngestEnqueuer
	onDemand  OnDemandSyncer
	health    []HealthChecker
	metrics   *observability.Metrics
	registry  *prometheus.Registry
	logger    logging.Logger
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Calendars calendar.CalendarStore
	Sync      SyncEnqueuer
	Ingest    IngestEnqueuer

	// OnDemand backs POST /sync/on-demand; the route is absent when nil.
	OnDemand OnDemandSyncer

	// Health checkers consulted by /healthz. All must pass.
	Health []HealthChecker

	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Logger   logging.Logger
}

// NewServer creates a webhook server.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Server{
		calendars: opts.Calendars,
		sync:      opts.Sync,
		ingest:    opts.Ingest,
		onDemand:  opts.OnDemand,
		health:    opts.Health,
		metrics:   metrics,
		registry:  opts.Registry,
		logger:    logger,
	}
}

// Handler returns the HTTP mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/calendar", s.handleCalendarWebhook)
	mux.HandleFunc("POST /webhooks/bot", s.handleBotWebhook)
	if s.onDemand != nil {
		mux.HandleFunc("POST /sync/on-demand", s.handleOnDemandSync)
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", buildinfo.Handler("recalld"))
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// calendarWebhook is the provider's calendar notification envelope.
type calendarWebhook struct {
	Event string `json:"event"`
	Data  struct {
		CalendarID string `json:"calendar_id"`
	} `json:"data"`
}

// handleCalendarWebhook acks every delivery with 200. The notification is
// only a hint that something changed; any recognizable calendar id triggers
// a bounded resync regardless of the event type, so unknown types degrade
// to a harmless extra sync rather than dropped work.
func (s *Server) handleCalendarWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var hook calendarWebhook
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&hook); err != nil {
		s.logger.Warn("undecodable calendar webhook", logging.Err(err))
		s.metrics.WebhooksTotal.WithLabelValues("calendar_malformed").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	eventLabel := hook.Event
	if eventLabel == "" {
		eventLabel = "unknown"
	}
	s.metrics.WebhooksTotal.WithLabelValues("calendar_" + eventLabel).Inc()

	if hook.Data.CalendarID == "" {
		s.logger.Warn("calendar webhook without calendar id",
			logging.F("event", hook.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	cal, err := s.calendars.GetCalendarByRemoteID(r.Context(), hook.Data.CalendarID)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("calendar webhook for unknown calendar",
				logging.F("remote_calendar_id", hook.Data.CalendarID))
		} else {
			s.logger.Error("calendar lookup failed", logging.Err(err))
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.sync.EnqueueSync(r.Context(), cal.ID, calendar.TriggerWebhook, queues.PriorityNormal); err != nil {
		s.logger.Error("failed to enqueue webhook sync",
			logging.F("calendar_id", cal.ID.String()), logging.Err(err))
	}
	w.WriteHeader(http.StatusOK)
}

// handleBotWebhook acks every delivery with 200 and defers all processing
// to the ingest queue. The provider retries non-2xx responses aggressively,
// so failures here are logged rather than surfaced.
func (s *Server) handleBotWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		s.logger.Warn("undecodable bot webhook", logging.Err(err))
		s.metrics.WebhooksTotal.WithLabelValues("bot_malformed").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	eventType, _ := payload["event"].(string)
	if eventType == "" {
		eventType = "unknown"
	}
	s.metrics.WebhooksTotal.WithLabelValues("bot_" + eventType).Inc()

	if err := s.ingest.EnqueueIngest(r.Context(), eventType, payload); err != nil {
		s.logger.Error("failed to enqueue bot ingest",
			logging.F("event_type", eventType), logging.Err(err))
	}
	w.WriteHeader(http.StatusOK)
}

// onDemandRequest names the user whose calendars should be refreshed.
type onDemandRequest struct {
	UserID string `json:"user_id"`
}

// handleOnDemandSync refreshes a user's calendars when they view meeting
// data. The synchronizer's per-user throttle makes repeat calls cheap, so
// callers may fire this on every page view.
func (s *Server) handleOnDemandSync(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req onDemandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	s.metrics.WebhooksTotal.WithLabelValues("sync_on_demand").Inc()
	s.onDemand.SyncOnDemand(r.Context(), userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, checker := range s.health {
		if err := checker.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", logging.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
