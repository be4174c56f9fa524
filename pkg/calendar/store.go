package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
)

// CalendarStore provides access to connected calendar records.
type CalendarStore interface {
	// GetCalendar retrieves a calendar by local id.
	GetCalendar(ctx context.Context, id uuid.UUID) (*Calendar, error)

	// GetCalendarByRemoteID retrieves a calendar by the provider's id.
	GetCalendarByRemoteID(ctx context.Context, remoteID string) (*Calendar, error)

	// ListConnectedCalendars lists all calendars in connected status.
	ListConnectedCalendars(ctx context.Context) ([]Calendar, error)

	// ListCalendarsForUser lists a user's calendars in connected status.
	ListCalendarsForUser(ctx context.Context, userID uuid.UUID) ([]Calendar, error)

	// SetCalendarStatus updates the connection status. Calendars are never
	// destroyed while events reference them; disconnection is a status flip.
	SetCalendarStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// EventStore provides upsert/delete access to the local event mirror.
type EventStore interface {
	// UpsertEvent inserts or updates the mirror record keyed by
	// (calendar id, remote event id), always overwriting the sync-owned
	// fields (times, meeting URL, raw payload, updated at) and never the
	// eligibility fields. Returns the local event id.
	UpsertEvent(ctx context.Context, ev *CalendarEvent) (uuid.UUID, error)

	// DeleteEvent removes the mirror record for a remote event. Deleting a
	// record that does not exist is a no-op.
	DeleteEvent(ctx context.Context, calendarID uuid.UUID, remoteEventID string) error

	// GetEvent retrieves an event by local id.
	GetEvent(ctx context.Context, id uuid.UUID) (*CalendarEvent, error)

	// GetEventByRemoteID retrieves an event by its reconciliation key.
	GetEventByRemoteID(ctx context.Context, calendarID uuid.UUID, remoteEventID string) (*CalendarEvent, error)

	// SetAutoRecord overwrites the engine-computed eligibility flag.
	SetAutoRecord(ctx context.Context, id uuid.UUID, eligible bool) error

	// SetManualOverride sets the user override; nil clears it back to
	// "defer to automatic".
	SetManualOverride(ctx context.Context, id uuid.UUID, override *bool) error

	// SetBotState persists the provider's returned event/bot state.
	SetBotState(ctx context.Context, id uuid.UUID, state json.RawMessage) error
}

// PostgresStore implements CalendarStore and EventStore using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const calendarColumns = `
	id, user_id, remote_id, platform, owner_email, status,
	record_external, record_internal, only_confirmed,
	record_video, record_audio, transcription_mode, transcript_language,
	bot_name, bot_avatar_url, join_lead_minutes, created_at, updated_at
`

// GetCalendar retrieves a calendar by local id.
func (s *PostgresStore) GetCalendar(ctx context.Context, id uuid.UUID) (*Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE id = $1`
	return scanCalendar(s.db.QueryRow(ctx, query, id))
}

// GetCalendarByRemoteID retrieves a calendar by the provider's id.
func (s *PostgresStore) GetCalendarByRemoteID(ctx context.Context, remoteID string) (*Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE remote_id = $1`
	return scanCalendar(s.db.QueryRow(ctx, query, remoteID))
}

// ListConnectedCalendars lists all calendars in connected status.
func (s *PostgresStore) ListConnectedCalendars(ctx context.Context) ([]Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE status = $1 ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, StatusConnected)
	if err != nil {
		return nil, fmt.Errorf("listing connected calendars: %w", err)
	}
	defer rows.Close()
	return collectCalendars(rows)
}

// ListCalendarsForUser lists a user's connected calendars.
func (s *PostgresStore) ListCalendarsForUser(ctx context.Context, userID uuid.UUID) ([]Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE user_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, userID, StatusConnected)
	if err != nil {
		return nil, fmt.Errorf("listing calendars for user: %w", err)
	}
	defer rows.Close()
	return collectCalendars(rows)
}

// SetCalendarStatus updates the connection status.
func (s *PostgresStore) SetCalendarStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := s.db.Exec(ctx,
		`UPDATE calendars SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("updating calendar status: %w", err)
	}
	return nil
}

// UpsertEvent inserts or updates the mirror record keyed by
// (calendar id, remote event id).
func (s *PostgresStore) UpsertEvent(ctx context.Context, ev *CalendarEvent) (uuid.UUID, error) {
	id := ev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO calendar_events (
			id, calendar_id, remote_event_id, start_time, end_time,
			meeting_url, raw_payload, should_record_auto
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (calendar_id, remote_event_id) DO UPDATE SET
			start_time  = EXCLUDED.start_time,
			end_time    = EXCLUDED.end_time,
			meeting_url = EXCLUDED.meeting_url,
			raw_payload = EXCLUDED.raw_payload,
			updated_at  = now()
		RETURNING id
	`

	var returned uuid.UUID
	err := s.db.QueryRow(ctx, query,
		id, ev.CalendarID, ev.RemoteEventID,
		nullableTime(ev.StartTime), nullableTime(ev.EndTime),
		ev.MeetingURL, rawOrEmpty(ev.RawPayload), ev.ShouldRecordAuto,
	).Scan(&returned)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting event %s: %w", ev.RemoteEventID, err)
	}
	return returned, nil
}

// DeleteEvent removes the mirror record for a remote event.
func (s *PostgresStore) DeleteEvent(ctx context.Context, calendarID uuid.UUID, remoteEventID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM calendar_events WHERE calendar_id = $1 AND remote_event_id = $2`,
		calendarID, remoteEventID,
	)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", remoteEventID, err)
	}
	return nil
}

const eventColumns = `
	id, calendar_id, remote_event_id, start_time, end_time, meeting_url,
	raw_payload, should_record_auto, should_record_manual,
	transcription_override, bot_state, created_at, updated_at
`

// GetEvent retrieves an event by local id.
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE id = $1`
	return scanEvent(s.db.QueryRow(ctx, query, id))
}

// GetEventByRemoteID retrieves an event by its reconciliation key.
func (s *PostgresStore) GetEventByRemoteID(ctx context.Context, calendarID uuid.UUID, remoteEventID string) (*CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE calendar_id = $1 AND remote_event_id = $2`
	return scanEvent(s.db.QueryRow(ctx, query, calendarID, remoteEventID))
}

// SetAutoRecord overwrites the engine-computed eligibility flag.
func (s *PostgresStore) SetAutoRecord(ctx context.Context, id uuid.UUID, eligible bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE calendar_events SET should_record_auto = $2, updated_at = now() WHERE id = $1`,
		id, eligible,
	)
	if err != nil {
		return fmt.Errorf("updating auto-record flag: %w", err)
	}
	return nil
}

// SetManualOverride sets or clears the user override.
func (s *PostgresStore) SetManualOverride(ctx context.Context, id uuid.UUID, override *bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE calendar_events SET should_record_manual = $2, updated_at = now() WHERE id = $1`,
		id, override,
	)
	if err != nil {
		return fmt.Errorf("updating manual override: %w", err)
	}
	return nil
}

// SetBotState persists the provider's returned event/bot state.
func (s *PostgresStore) SetBotState(ctx context.Context, id uuid.UUID, state json.RawMessage) error {
	_, err := s.db.Exec(ctx,
		`UPDATE calendar_events SET bot_state = $2, updated_at = now() WHERE id = $1`,
		id, rawOrEmpty(state),
	)
	if err != nil {
		return fmt.Errorf("updating bot state: %w", err)
	}
	return nil
}

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	err := row.Scan(
		&c.ID, &c.UserID, &c.RemoteID, &c.Platform, &c.OwnerEmail, &c.Status,
		&c.Policy.RecordExternal, &c.Policy.RecordInternal, &c.Policy.OnlyConfirmed,
		&c.Recording.RecordVideo, &c.Recording.RecordAudio,
		&c.Recording.TranscriptionMode, &c.Recording.Language,
		&c.Bot.Name, &c.Bot.AvatarURL, &c.Bot.JoinLeadMinutes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recallerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning calendar: %w", err)
	}
	return &c, nil
}

func collectCalendars(rows pgx.Rows) ([]Calendar, error) {
	var calendars []Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, *c)
	}
	return calendars, rows.Err()
}

func scanEvent(row pgx.Row) (*CalendarEvent, error) {
	var (
		e          CalendarEvent
		start, end *time.Time
		override   *string
	)
	err := row.Scan(
		&e.ID, &e.CalendarID, &e.RemoteEventID, &start, &end, &e.MeetingURL,
		&e.RawPayload, &e.ShouldRecordAuto, &e.ShouldRecordManual,
		&override, &e.BotState, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recallerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	if start != nil {
		e.StartTime = *start
	}
	if end != nil {
		e.EndTime = *end
	}
	if override != nil {
		mode := TranscriptionMode(*override)
		e.TranscriptionOverride = &mode
	}
	return &e, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

// Verify interface compliance
var (
	_ CalendarStore = (*PostgresStore)(nil)
	_ EventStore    = (*PostgresStore)(nil)
)
