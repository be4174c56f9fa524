package calendar

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OverrideRecording sets or clears the manual recording override and hands
// the event to bot reconciliation, so the bot converges on the new combined
// eligibility without waiting for the next remote change to touch the event.
// A nil override clears the flag back to the automatic decision.
func OverrideRecording(ctx context.Context, events EventStore, reconcile ReconcileEnqueuer, eventID uuid.UUID, override *bool) error {
	if err := events.SetManualOverride(ctx, eventID, override); err != nil {
		return fmt.Errorf("setting manual override for event %s: %w", eventID, err)
	}
	if reconcile == nil {
		return nil
	}
	if err := reconcile.EnqueueReconcile(ctx, eventID); err != nil {
		return fmt.Errorf("enqueueing reconciliation for event %s: %w", eventID, err)
	}
	return nil
}
