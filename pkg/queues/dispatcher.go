package queues

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatcher fans domain work out to the named queues. It satisfies the
// enqueuer interfaces the sync, pipeline, and webhook packages accept.
type Dispatcher struct {
	sync      Queue
	reconcile Queue
	ingest    Queue
	enrich    Queue
}

// NewDispatcher creates a dispatcher over the four service queues.
func NewDispatcher(sync, reconcile, ingest, enrich Queue) *Dispatcher {
	return &Dispatcher{
		sync:      sync,
		reconcile: reconcile,
		ingest:    ingest,
		enrich:    enrich,
	}
}

// EnqueueSync requests a bounded resynchronization of one calendar.
func (d *Dispatcher) EnqueueSync(ctx context.Context, calendarID uuid.UUID, trigger string, priority Priority) error {
	return d.sync.Enqueue(&SyncMessage{
		CalendarID:  calendarID,
		Trigger:     trigger,
		Priority:    priority,
		RequestedAt: time.Now(),
	})
}

// EnqueueReconcile requests bot reconciliation for a touched event.
func (d *Dispatcher) EnqueueReconcile(ctx context.Context, eventID uuid.UUID) error {
	return d.reconcile.Enqueue(&ReconcileMessage{
		EventID:  eventID,
		Priority: PriorityNormal,
	})
}

// EnqueueIngest hands a bot webhook delivery to the transcript pipeline.
func (d *Dispatcher) EnqueueIngest(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return d.ingest.Enqueue(&IngestMessage{
		EventType:  eventType,
		Payload:    payload,
		Priority:   PriorityNormal,
		ReceivedAt: time.Now(),
	})
}

// EnqueueEnrich hands a completed artifact to downstream enrichment.
func (d *Dispatcher) EnqueueEnrich(ctx context.Context, artifactID uuid.UUID) error {
	return d.enrich.Enqueue(&EnrichMessage{
		ArtifactID: artifactID,
		Priority:   PriorityLow,
	})
}
