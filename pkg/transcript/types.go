// Package transcript ingests bot and transcript webhook payloads, merges
// them into per-meeting artifacts, and persists ordered transcript chunks.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactStatus is the lifecycle state of a meeting artifact.
type ArtifactStatus string

const (
	StatusReceived  ArtifactStatus = "received"
	StatusCompleted ArtifactStatus = "completed"
	StatusEnriched  ArtifactStatus = "enriched"
)

// MeetingArtifact is one recording/bot session. It is correlated to a
// calendar event by remote event id or by remote bot id; both may arrive
// independently and must reconcile to the same artifact.
type MeetingArtifact struct {
	ID            uuid.UUID
	RemoteEventID string
	RemoteBotID   string
	Status        ArtifactStatus

	// Payload accumulates across webhook deliveries via deep merge;
	// previously merged fields are never discarded.
	Payload map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Segment is a normalized speech segment extracted from a provider payload.
type Segment struct {
	Speaker string
	Text    string
	StartMs int64
	EndMs   int64
}

// Chunk is one persisted transcript segment. Sequence numbers are dense and
// ordered within an artifact for a final transcript; for a streaming
// transcript they are monotonically increasing but may be sparse.
type Chunk struct {
	ID         uuid.UUID
	ArtifactID uuid.UUID
	Seq        int
	Speaker    string
	Text       string
	StartMs    int64
	EndMs      int64
	CreatedAt  time.Time
}
