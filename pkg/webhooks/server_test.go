package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
)

// calendarLookup serves GetCalendarByRemoteID from a fixed map.
type calendarLookup struct {
	calendar.CalendarStore
	byRemoteID map[string]*calendar.Calendar
	err        error
}

func (s *calendarLookup) GetCalendarByRemoteID(ctx context.Context, remoteID string) (*calendar.Calendar, error) {
	if s.err != nil {
		return nil, s.err
	}
	cal, ok := s.byRemoteID[remoteID]
	if !ok {
		return nil, recallerrors.ErrNotFound
	}
	return cal, nil
}

type syncRecorder struct {
	calendarIDs []uuid.UUID
	triggers    []string
	err         error
}

func (r *syncRecorder) EnqueueSync(ctx context.Context, calendarID uuid.UUID, trigger string, priority queues.Priority) error {
	if r.err != nil {
		return r.err
	}
	r.calendarIDs = append(r.calendarIDs, calendarID)
	r.triggers = append(r.triggers, trigger)
	return nil
}

type ingestRecorder struct {
	eventTypes []string
	payloads   []map[string]interface{}
	err        error
}

func (r *ingestRecorder) EnqueueIngest(ctx context.Context, eventType string, payload map[string]interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.eventTypes = append(r.eventTypes, eventType)
	r.payloads = append(r.payloads, payload)
	return nil
}

type onDemandRecorder struct {
	userIDs []uuid.UUID
}

func (r *onDemandRecorder) SyncOnDemand(ctx context.Context, userID uuid.UUID) {
	r.userIDs = append(r.userIDs, userID)
}

func newTestServer(store calendar.CalendarStore, sync *syncRecorder, ingest *ingestRecorder, health ...HealthChecker) *Server {
	return NewServer(ServerOptions{
		Calendars: store,
		Sync:      sync,
		Ingest:    ingest,
		Health:    health,
		Metrics:   observability.New(prometheus.NewRegistry()),
		Registry:  prometheus.NewRegistry(),
	})
}

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCalendarWebhook(t *testing.T) {
	cal := &calendar.Calendar{ID: uuid.New(), RemoteID: "remote-cal-1"}
	store := &calendarLookup{byRemoteID: map[string]*calendar.Calendar{"remote-cal-1": cal}}

	t.Run("known calendar triggers a resync", func(t *testing.T) {
		sync := &syncRecorder{}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar",
			`{"event": "calendar.sync_events", "data": {"calendar_id": "remote-cal-1"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sync.calendarIDs, 1)
		assert.Equal(t, cal.ID, sync.calendarIDs[0])
		assert.Equal(t, calendar.TriggerWebhook, sync.triggers[0])
	})

	t.Run("unknown event type still resyncs", func(t *testing.T) {
		sync := &syncRecorder{}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar",
			`{"event": "calendar.brand_new_thing", "data": {"calendar_id": "remote-cal-1"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, sync.calendarIDs, 1)
	})

	t.Run("unknown calendar is acknowledged without work", func(t *testing.T) {
		sync := &syncRecorder{}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar",
			`{"event": "calendar.sync_events", "data": {"calendar_id": "never-seen"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sync.calendarIDs)
	})

	t.Run("malformed body is acknowledged", func(t *testing.T) {
		sync := &syncRecorder{}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar", `{not json`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sync.calendarIDs)
	})

	t.Run("missing calendar id is acknowledged", func(t *testing.T) {
		sync := &syncRecorder{}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar", `{"event": "calendar.sync_events", "data": {}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sync.calendarIDs)
	})

	t.Run("lookup failure is acknowledged", func(t *testing.T) {
		failing := &calendarLookup{err: errors.New("connection refused")}
		sync := &syncRecorder{}
		srv := newTestServer(failing, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar",
			`{"event": "calendar.sync_events", "data": {"calendar_id": "remote-cal-1"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("enqueue failure is acknowledged", func(t *testing.T) {
		sync := &syncRecorder{err: errors.New("redis down")}
		srv := newTestServer(store, sync, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/webhooks/calendar",
			`{"event": "calendar.sync_events", "data": {"calendar_id": "remote-cal-1"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBotWebhook(t *testing.T) {
	store := &calendarLookup{}

	t.Run("payload is queued verbatim", func(t *testing.T) {
		ingest := &ingestRecorder{}
		srv := newTestServer(store, &syncRecorder{}, ingest)

		rec := post(t, srv.Handler(), "/webhooks/bot",
			`{"event": "transcript.partial_data", "data": {"bot": {"id": "b1"}}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingest.eventTypes, 1)
		assert.Equal(t, "transcript.partial_data", ingest.eventTypes[0])
		data := ingest.payloads[0]["data"].(map[string]interface{})
		bot := data["bot"].(map[string]interface{})
		assert.Equal(t, "b1", bot["id"])
	})

	t.Run("missing event type queues as unknown", func(t *testing.T) {
		ingest := &ingestRecorder{}
		srv := newTestServer(store, &syncRecorder{}, ingest)

		rec := post(t, srv.Handler(), "/webhooks/bot", `{"data": {"bot_id": "b1"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingest.eventTypes, 1)
		assert.Equal(t, "unknown", ingest.eventTypes[0])
	})

	t.Run("malformed body is acknowledged without queue work", func(t *testing.T) {
		ingest := &ingestRecorder{}
		srv := newTestServer(store, &syncRecorder{}, ingest)

		rec := post(t, srv.Handler(), "/webhooks/bot", `not json at all`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, ingest.eventTypes)
	})

	t.Run("enqueue failure is acknowledged", func(t *testing.T) {
		ingest := &ingestRecorder{err: errors.New("redis down")}
		srv := newTestServer(store, &syncRecorder{}, ingest)

		rec := post(t, srv.Handler(), "/webhooks/bot", `{"event": "transcript.data"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestOnDemandSync(t *testing.T) {
	newServerWithSyncer := func(syncer *onDemandRecorder) *Server {
		return NewServer(ServerOptions{
			Calendars: &calendarLookup{},
			Sync:      &syncRecorder{},
			Ingest:    &ingestRecorder{},
			OnDemand:  syncer,
			Metrics:   observability.New(prometheus.NewRegistry()),
			Registry:  prometheus.NewRegistry(),
		})
	}

	t.Run("valid request runs the user's sync", func(t *testing.T) {
		syncer := &onDemandRecorder{}
		srv := newServerWithSyncer(syncer)
		userID := uuid.New()

		rec := post(t, srv.Handler(), "/sync/on-demand", `{"user_id": "`+userID.String()+`"}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []uuid.UUID{userID}, syncer.userIDs)
	})

	t.Run("invalid user id is rejected", func(t *testing.T) {
		syncer := &onDemandRecorder{}
		srv := newServerWithSyncer(syncer)

		rec := post(t, srv.Handler(), "/sync/on-demand", `{"user_id": "not-a-uuid"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, syncer.userIDs)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		syncer := &onDemandRecorder{}
		srv := newServerWithSyncer(syncer)

		rec := post(t, srv.Handler(), "/sync/on-demand", `{"user_id": `)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, syncer.userIDs)
	})

	t.Run("route absent when no syncer is configured", func(t *testing.T) {
		srv := newTestServer(&calendarLookup{}, &syncRecorder{}, &ingestRecorder{})

		rec := post(t, srv.Handler(), "/sync/on-demand", `{"user_id": "`+uuid.NewString()+`"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	store := &calendarLookup{}

	t.Run("all checks pass", func(t *testing.T) {
		healthy := PingerFunc(func(ctx context.Context) error { return nil })
		srv := newTestServer(store, &syncRecorder{}, &ingestRecorder{}, healthy, healthy)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ok"`)
	})

	t.Run("one failing check makes the service unhealthy", func(t *testing.T) {
		healthy := PingerFunc(func(ctx context.Context) error { return nil })
		failing := PingerFunc(func(ctx context.Context) error { return errors.New("no route to host") })
		srv := newTestServer(store, &syncRecorder{}, &ingestRecorder{}, healthy, failing)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unhealthy"`)
	})
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(&calendarLookup{}, &syncRecorder{}, &ingestRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recalld")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&calendarLookup{}, &syncRecorder{}, &ingestRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/calendar", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
