package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
)

// ArtifactStore provides access to meeting artifacts and their chunks.
type ArtifactStore interface {
	// FindByID retrieves an artifact by local id.
	FindByID(ctx context.Context, id uuid.UUID) (*MeetingArtifact, error)

	// FindByRemoteEventID locates an artifact by remote event id.
	FindByRemoteEventID(ctx context.Context, remoteEventID string) (*MeetingArtifact, error)

	// FindByBotID locates an artifact by remote bot id.
	FindByBotID(ctx context.Context, botID string) (*MeetingArtifact, error)

	// Create inserts a new artifact. An artifact is never recreated for the
	// same bot id; callers locate first.
	Create(ctx context.Context, artifact *MeetingArtifact) error

	// SetCorrelation fills in missing correlation ids. Existing non-empty
	// ids are never overwritten.
	SetCorrelation(ctx context.Context, id uuid.UUID, remoteEventID, botID string) error

	// SetPayload stores the accumulated payload.
	SetPayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error

	// SetStatus updates the artifact lifecycle status.
	SetStatus(ctx context.Context, id uuid.UUID, status ArtifactStatus) error

	// ReplaceChunks purges all existing chunks for the artifact and inserts
	// the segments with dense sequence numbers from zero.
	ReplaceChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error

	// AppendChunks inserts the segments continuing the sequence counter
	// from the current maximum plus one.
	AppendChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error

	// CountChunks returns the number of chunks for the artifact.
	CountChunks(ctx context.Context, artifactID uuid.UUID) (int, error)
}

// PostgresStore implements ArtifactStore using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed artifact store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const artifactColumns = `id, remote_event_id, remote_bot_id, status, payload, created_at, updated_at`

// FindByID retrieves an artifact by local id.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*MeetingArtifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM meeting_artifacts WHERE id = $1`
	return scanArtifact(s.db.QueryRow(ctx, query, id))
}

// FindByRemoteEventID locates an artifact by remote event id.
func (s *PostgresStore) FindByRemoteEventID(ctx context.Context, remoteEventID string) (*MeetingArtifact, error) {
	if remoteEventID == "" {
		return nil, recallerrors.ErrNotFound
	}
	query := `SELECT ` + artifactColumns + ` FROM meeting_artifacts WHERE remote_event_id = $1`
	return scanArtifact(s.db.QueryRow(ctx, query, remoteEventID))
}

// FindByBotID locates an artifact by remote bot id.
func (s *PostgresStore) FindByBotID(ctx context.Context, botID string) (*MeetingArtifact, error) {
	if botID == "" {
		return nil, recallerrors.ErrNotFound
	}
	query := `SELECT ` + artifactColumns + ` FROM meeting_artifacts WHERE remote_bot_id = $1`
	return scanArtifact(s.db.QueryRow(ctx, query, botID))
}

// Create inserts a new artifact.
func (s *PostgresStore) Create(ctx context.Context, artifact *MeetingArtifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.Status == "" {
		artifact.Status = StatusReceived
	}

	payload, err := json.Marshal(payloadOrEmpty(artifact.Payload))
	if err != nil {
		return fmt.Errorf("encoding artifact payload: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO meeting_artifacts (id, remote_event_id, remote_bot_id, status, payload)
		VALUES ($1, $2, $3, $4, $5)
	`,
		artifact.ID, nullIfEmpty(artifact.RemoteEventID), nullIfEmpty(artifact.RemoteBotID),
		artifact.Status, payload,
	)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	return nil
}

// SetCorrelation fills in missing correlation ids.
func (s *PostgresStore) SetCorrelation(ctx context.Context, id uuid.UUID, remoteEventID, botID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE meeting_artifacts SET
			remote_event_id = COALESCE(remote_event_id, $2),
			remote_bot_id   = COALESCE(remote_bot_id, $3),
			updated_at      = now()
		WHERE id = $1
	`, id, nullIfEmpty(remoteEventID), nullIfEmpty(botID))
	if err != nil {
		return fmt.Errorf("updating artifact correlation: %w", err)
	}
	return nil
}

// SetPayload stores the accumulated payload.
func (s *PostgresStore) SetPayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error {
	data, err := json.Marshal(payloadOrEmpty(payload))
	if err != nil {
		return fmt.Errorf("encoding artifact payload: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE meeting_artifacts SET payload = $2, updated_at = now() WHERE id = $1`,
		id, data,
	)
	if err != nil {
		return fmt.Errorf("updating artifact payload: %w", err)
	}
	return nil
}

// SetStatus updates the artifact lifecycle status.
func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status ArtifactStatus) error {
	_, err := s.db.Exec(ctx,
		`UPDATE meeting_artifacts SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("updating artifact status: %w", err)
	}
	return nil
}

// ReplaceChunks purges and reinserts all chunks for the artifact.
func (s *PostgresStore) ReplaceChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_chunks WHERE artifact_id = $1`, artifactID); err != nil {
		return fmt.Errorf("purging chunks: %w", err)
	}
	if err := insertChunks(ctx, tx, artifactID, segments, 0); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendChunks inserts segments continuing from the current max sequence.
func (s *PostgresStore) AppendChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk append: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), -1) FROM transcript_chunks WHERE artifact_id = $1`,
		artifactID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max chunk sequence: %w", err)
	}

	if err := insertChunks(ctx, tx, artifactID, segments, maxSeq+1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CountChunks returns the number of chunks for the artifact.
func (s *PostgresStore) CountChunks(ctx context.Context, artifactID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transcript_chunks WHERE artifact_id = $1`,
		artifactID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

func insertChunks(ctx context.Context, tx pgx.Tx, artifactID uuid.UUID, segments []Segment, fromSeq int) error {
	for i, seg := range segments {
		_, err := tx.Exec(ctx, `
			INSERT INTO transcript_chunks (id, artifact_id, seq, speaker, text, start_ms, end_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), artifactID, fromSeq+i, seg.Speaker, seg.Text, seg.StartMs, seg.EndMs)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", fromSeq+i, err)
		}
	}
	return nil
}

func scanArtifact(row pgx.Row) (*MeetingArtifact, error) {
	var (
		a             MeetingArtifact
		remoteEventID *string
		remoteBotID   *string
		payload       []byte
	)
	err := row.Scan(&a.ID, &remoteEventID, &remoteBotID, &a.Status, &payload, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recallerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning artifact: %w", err)
	}
	if remoteEventID != nil {
		a.RemoteEventID = *remoteEventID
	}
	if remoteBotID != nil {
		a.RemoteBotID = *remoteBotID
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("decoding artifact payload: %w", err)
		}
	}
	if a.Payload == nil {
		a.Payload = make(map[string]interface{})
	}
	return &a, nil
}

func payloadOrEmpty(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return map[string]interface{}{}
	}
	return payload
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Verify interface compliance
var _ ArtifactStore = (*PostgresStore)(nil)
