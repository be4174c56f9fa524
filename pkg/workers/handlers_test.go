package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindevelopers/recall-sub000/pkg/bot"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
)

// emptyCalendarStore answers every lookup with not-found.
type emptyCalendarStore struct {
	calendar.CalendarStore
}

func (emptyCalendarStore) GetCalendar(ctx context.Context, id uuid.UUID) (*calendar.Calendar, error) {
	return nil, recallerrors.ErrNotFound
}

// emptyEventStore answers every lookup with not-found.
type emptyEventStore struct {
	calendar.EventStore
}

func (emptyEventStore) GetEvent(ctx context.Context, id uuid.UUID) (*calendar.CalendarEvent, error) {
	return nil, recallerrors.ErrNotFound
}

type enrichSpy struct {
	ids []uuid.UUID
}

func (e *enrichSpy) Enrich(ctx context.Context, artifactID uuid.UUID) error {
	e.ids = append(e.ids, artifactID)
	return nil
}

func TestSyncHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("disconnected calendar is a clean no-op", func(t *testing.T) {
		handler := SyncHandler(nil, emptyCalendarStore{}, 24*time.Hour)

		err := handler(ctx, &queues.SyncMessage{CalendarID: uuid.New(), Trigger: calendar.TriggerWebhook})
		assert.NoError(t, err)
	})

	t.Run("wrong message type is rejected", func(t *testing.T) {
		handler := SyncHandler(nil, emptyCalendarStore{}, 24*time.Hour)

		err := handler(ctx, &queues.EnrichMessage{ArtifactID: uuid.New()})
		assert.ErrorIs(t, err, queues.ErrUnknownMessageType)
	})
}

func TestReconcileHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted event is a clean no-op", func(t *testing.T) {
		scheduler := bot.NewScheduler(nil, emptyEventStore{}, bot.SchedulerOptions{})
		handler := ReconcileHandler(scheduler, emptyCalendarStore{}, emptyEventStore{})

		err := handler(ctx, &queues.ReconcileMessage{EventID: uuid.New()})
		assert.NoError(t, err)
	})

	t.Run("wrong message type is rejected", func(t *testing.T) {
		handler := ReconcileHandler(nil, emptyCalendarStore{}, emptyEventStore{})

		err := handler(ctx, &queues.SyncMessage{CalendarID: uuid.New()})
		assert.ErrorIs(t, err, queues.ErrUnknownMessageType)
	})
}

func TestEnrichHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches to the enricher", func(t *testing.T) {
		spy := &enrichSpy{}
		handler := EnrichHandler(spy, nil)
		artifactID := uuid.New()

		require.NoError(t, handler(ctx, &queues.EnrichMessage{ArtifactID: artifactID}))
		assert.Equal(t, []uuid.UUID{artifactID}, spy.ids)
	})

	t.Run("wrong message type is rejected", func(t *testing.T) {
		handler := EnrichHandler(&enrichSpy{}, nil)

		err := handler(ctx, &queues.IngestMessage{EventType: "transcript.data"})
		assert.ErrorIs(t, err, queues.ErrUnknownMessageType)
	})
}

func TestIngestHandler_WrongMessageType(t *testing.T) {
	handler := IngestHandler(nil)

	err := handler(context.Background(), &queues.SyncMessage{CalendarID: uuid.New()})
	assert.ErrorIs(t, err, queues.ErrUnknownMessageType)
}
