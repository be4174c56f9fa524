// Package calendar provides the local mirror of remote calendars, the
// synchronization engine that keeps it consistent with the provider, and the
// auto-record eligibility rules.
package calendar

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the remote calendar platform.
type Platform string

const (
	PlatformGoogle    Platform = "google_calendar"
	PlatformMicrosoft Platform = "microsoft_outlook"
)

// Status is the connection state of a calendar.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// TranscriptionMode selects when transcription happens.
type TranscriptionMode string

const (
	TranscriptionRealtime TranscriptionMode = "realtime"
	TranscriptionAsync    TranscriptionMode = "async"
)

// RecordingPolicy holds the flags deciding which meetings qualify for
// automatic recording.
type RecordingPolicy struct {
	RecordExternal bool
	RecordInternal bool
	OnlyConfirmed  bool
}

// RecordingPrefs holds recording and transcription preferences.
type RecordingPrefs struct {
	RecordVideo       bool
	RecordAudio       bool
	TranscriptionMode TranscriptionMode
	Language          string
}

// BotAppearance holds bot cosmetic settings.
type BotAppearance struct {
	Name            string
	AvatarURL       string
	JoinLeadMinutes int
}

// Calendar is one connected remote calendar account.
type Calendar struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	RemoteID   string
	Platform   Platform
	OwnerEmail string
	Status     Status
	Policy     RecordingPolicy
	Recording  RecordingPrefs
	Bot        BotAppearance
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OwnerDomain returns the domain part of the owner's email, or "" when the
// owner email carries no domain.
func (c *Calendar) OwnerDomain() string {
	_, domain, ok := strings.Cut(c.OwnerEmail, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}

// CalendarEvent is the local mirror of one remote calendar occurrence.
type CalendarEvent struct {
	ID            uuid.UUID
	CalendarID    uuid.UUID
	RemoteEventID string
	StartTime     time.Time
	EndTime       time.Time
	MeetingURL    string

	// RawPayload is the opaque provider payload, kept for platform-specific
	// attendee and organizer extraction.
	RawPayload json.RawMessage

	// ShouldRecordAuto is engine-computed and overwritten on every sync.
	ShouldRecordAuto bool

	// ShouldRecordManual is a user override. nil means "defer to automatic".
	ShouldRecordManual *bool

	// TranscriptionOverride replaces the calendar-level mode when set.
	TranscriptionOverride *TranscriptionMode

	// BotState is the provider's last returned event/bot state. It is the
	// only place bot identifiers become known locally.
	BotState json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShouldRecord returns the combined eligibility: the manual override when
// set, the automatic flag otherwise.
func (e *CalendarEvent) ShouldRecord() bool {
	if e.ShouldRecordManual != nil {
		return *e.ShouldRecordManual
	}
	return e.ShouldRecordAuto
}

// HasMeetingURL reports whether the event carries a join link.
func (e *CalendarEvent) HasMeetingURL() bool {
	return e.MeetingURL != ""
}

// Ended reports whether the event's end time is in the past.
func (e *CalendarEvent) Ended(now time.Time) bool {
	return !e.EndTime.IsZero() && e.EndTime.Before(now)
}

// Started reports whether the event's start time has already passed.
func (e *CalendarEvent) Started(now time.Time) bool {
	return !e.StartTime.IsZero() && !e.StartTime.After(now)
}

// EffectiveTranscriptionMode returns the per-event override when present,
// the calendar preference otherwise.
func (e *CalendarEvent) EffectiveTranscriptionMode(cal *Calendar) TranscriptionMode {
	if e.TranscriptionOverride != nil {
		return *e.TranscriptionOverride
	}
	if cal.Recording.TranscriptionMode == "" {
		return TranscriptionAsync
	}
	return cal.Recording.TranscriptionMode
}

// SyncResult reports which mirror records a sync touched.
type SyncResult struct {
	Upserted []uuid.UUID
	Deleted  []string
}
