package queues

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSyncMessage_Interface(t *testing.T) {
	msg := &SyncMessage{
		CalendarID:  uuid.New(),
		Trigger:     "webhook",
		Priority:    PriorityNormal,
		RequestedAt: time.Now(),
	}

	if msg.GetPriority() != PriorityNormal {
		t.Errorf("GetPriority() = %d, want %d", msg.GetPriority(), PriorityNormal)
	}
	if msg.GetMessageType() != MessageTypeSync {
		t.Errorf("GetMessageType() = %s, want %s", msg.GetMessageType(), MessageTypeSync)
	}
}

func TestReconcileMessage_Interface(t *testing.T) {
	msg := &ReconcileMessage{EventID: uuid.New(), Priority: PriorityHigh}

	if msg.GetPriority() != PriorityHigh {
		t.Errorf("GetPriority() = %d, want %d", msg.GetPriority(), PriorityHigh)
	}
	if msg.GetMessageType() != MessageTypeReconcile {
		t.Errorf("GetMessageType() = %s, want %s", msg.GetMessageType(), MessageTypeReconcile)
	}
}

func TestParseMessage_RoundTrip(t *testing.T) {
	calendarID := uuid.New()
	artifactID := uuid.New()

	tests := []struct {
		name        string
		messageType MessageType
		message     Message
		check       func(t *testing.T, parsed Message)
	}{
		{
			name:        "sync",
			messageType: MessageTypeSync,
			message:     &SyncMessage{CalendarID: calendarID, Trigger: "sweep", Priority: PriorityLow},
			check: func(t *testing.T, parsed Message) {
				m, ok := parsed.(*SyncMessage)
				if !ok {
					t.Fatalf("parsed %T, want *SyncMessage", parsed)
				}
				if m.CalendarID != calendarID {
					t.Errorf("CalendarID = %s, want %s", m.CalendarID, calendarID)
				}
				if m.Trigger != "sweep" {
					t.Errorf("Trigger = %s, want sweep", m.Trigger)
				}
			},
		},
		{
			name:        "ingest",
			messageType: MessageTypeIngest,
			message: &IngestMessage{
				EventType: "transcript.data",
				Payload:   map[string]interface{}{"data": map[string]interface{}{"bot_id": "b1"}},
				Priority:  PriorityNormal,
			},
			check: func(t *testing.T, parsed Message) {
				m, ok := parsed.(*IngestMessage)
				if !ok {
					t.Fatalf("parsed %T, want *IngestMessage", parsed)
				}
				if m.EventType != "transcript.data" {
					t.Errorf("EventType = %s, want transcript.data", m.EventType)
				}
				data, _ := m.Payload["data"].(map[string]interface{})
				if data["bot_id"] != "b1" {
					t.Errorf("payload bot_id = %v, want b1", data["bot_id"])
				}
			},
		},
		{
			name:        "enrich",
			messageType: MessageTypeEnrich,
			message:     &EnrichMessage{ArtifactID: artifactID, Priority: PriorityLow},
			check: func(t *testing.T, parsed Message) {
				m, ok := parsed.(*EnrichMessage)
				if !ok {
					t.Fatalf("parsed %T, want *EnrichMessage", parsed)
				}
				if m.ArtifactID != artifactID {
					t.Errorf("ArtifactID = %s, want %s", m.ArtifactID, artifactID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.message)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			qm := &QueuedMessage{
				ID:          "msg-1",
				Message:     raw,
				MessageType: tt.messageType,
			}
			parsed, err := qm.ParseMessage()
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			tt.check(t, parsed)
		})
	}
}

func TestParseMessage_UnknownType(t *testing.T) {
	qm := &QueuedMessage{ID: "msg-1", Message: json.RawMessage(`{}`), MessageType: "mystery"}
	if _, err := qm.ParseMessage(); !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("ParseMessage error = %v, want ErrUnknownMessageType", err)
	}
}

func TestDefaultQueueConfigs(t *testing.T) {
	configs := DefaultQueueConfigs()

	for _, name := range []string{QueueSync, QueueReconcile, QueueIngest, QueueEnrich} {
		cfg, ok := configs[name]
		if !ok {
			t.Errorf("missing config for %s", name)
			continue
		}
		if cfg.Name != name {
			t.Errorf("config name = %s, want %s", cfg.Name, name)
		}
		if cfg.VisibilityTimeout <= 0 {
			t.Errorf("%s visibility timeout = %s, want > 0", name, cfg.VisibilityTimeout)
		}
		if cfg.MaxRetries <= 0 {
			t.Errorf("%s max retries = %d, want > 0", name, cfg.MaxRetries)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{20, 5 * time.Minute}, // capped
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.retryCount); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %s, want %s", tt.retryCount, got, tt.want)
		}
	}
}
