package transcript

import (
	"context"

	"github.com/google/uuid"

	"github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
)

// Enricher finalizes completed artifacts. It stamps transcript statistics
// into the payload and advances the artifact to the enriched status so
// downstream consumers can pick it up.
type Enricher struct {
	store  ArtifactStore
	logger logging.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(store ArtifactStore, logger logging.Logger) *Enricher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Enricher{store: store, logger: logger}
}

// Enrich finalizes one artifact. Missing artifacts are skipped; the message
// may outlive a deleted artifact.
func (e *Enricher) Enrich(ctx context.Context, artifactID uuid.UUID) error {
	count, err := e.store.CountChunks(ctx, artifactID)
	if err != nil {
		return err
	}

	artifact, err := e.store.FindByID(ctx, artifactID)
	if err != nil {
		if errors.IsNotFound(err) {
			e.logger.Warn("artifact gone before enrichment",
				logging.F("artifact_id", artifactID.String()))
			return nil
		}
		return err
	}

	payload := DeepMerge(artifact.Payload, map[string]interface{}{
		"transcript_stats": map[string]interface{}{
			"chunk_count": count,
		},
	})
	if err := e.store.SetPayload(ctx, artifactID, payload); err != nil {
		return err
	}
	if err := e.store.SetStatus(ctx, artifactID, StatusEnriched); err != nil {
		return err
	}

	e.logger.Info("artifact enriched",
		logging.F("artifact_id", artifactID.String()),
		logging.F("chunk_count", count))
	return nil
}
