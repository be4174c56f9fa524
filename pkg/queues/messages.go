// Package queues provides the Redis-backed work queues connecting webhook
// intake to the sync, reconcile, ingest, and enrich workers.
package queues

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority levels for queue messages.
type Priority int

const (
	PriorityLow    Priority = 0 // Background sweeps
	PriorityNormal Priority = 1 // Webhook-driven work
	PriorityHigh   Priority = 2 // On-demand user requests
)

// MessageType identifies the type of queue message.
type MessageType string

const (
	MessageTypeSync      MessageType = "sync"
	MessageTypeReconcile MessageType = "reconcile"
	MessageTypeIngest    MessageType = "ingest"
	MessageTypeEnrich    MessageType = "enrich"
)

// Message is the base interface for all queue messages.
type Message interface {
	// GetPriority returns the message priority.
	GetPriority() Priority
	// GetMessageType returns the message type.
	GetMessageType() MessageType
}

// SyncMessage requests a bounded calendar resynchronization.
type SyncMessage struct {
	CalendarID  uuid.UUID `json:"calendar_id"`
	Trigger     string    `json:"trigger"`
	Priority    Priority  `json:"priority"`
	RequestedAt time.Time `json:"requested_at"`
}

func (m *SyncMessage) GetPriority() Priority       { return m.Priority }
func (m *SyncMessage) GetMessageType() MessageType { return MessageTypeSync }

// ReconcileMessage requests bot reconciliation for a touched event.
type ReconcileMessage struct {
	EventID  uuid.UUID `json:"event_id"`
	Priority Priority  `json:"priority"`
}

func (m *ReconcileMessage) GetPriority() Priority       { return m.Priority }
func (m *ReconcileMessage) GetMessageType() MessageType { return MessageTypeReconcile }

// IngestMessage carries a raw bot webhook delivery into the transcript
// pipeline.
type IngestMessage struct {
	EventType  string                 `json:"event_type"`
	Payload    map[string]interface{} `json:"payload"`
	Priority   Priority               `json:"priority"`
	ReceivedAt time.Time              `json:"received_at"`
}

func (m *IngestMessage) GetPriority() Priority       { return m.Priority }
func (m *IngestMessage) GetMessageType() MessageType { return MessageTypeIngest }

// EnrichMessage hands a completed artifact to downstream enrichment.
type EnrichMessage struct {
	ArtifactID uuid.UUID `json:"artifact_id"`
	Priority   Priority  `json:"priority"`
}

func (m *EnrichMessage) GetPriority() Priority       { return m.Priority }
func (m *EnrichMessage) GetMessageType() MessageType { return MessageTypeEnrich }

// QueuedMessage wraps a message with queue metadata.
type QueuedMessage struct {
	ID           string          `json:"id"`
	Message      json.RawMessage `json:"message"`
	MessageType  MessageType     `json:"message_type"`
	Priority     Priority        `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAfter time.Time       `json:"visible_after,omitempty"`
}

// ParseMessage parses the raw message based on message type.
func (qm *QueuedMessage) ParseMessage() (Message, error) {
	switch qm.MessageType {
	case MessageTypeSync:
		var msg SyncMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	case MessageTypeReconcile:
		var msg ReconcileMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	case MessageTypeIngest:
		var msg IngestMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	case MessageTypeEnrich:
		var msg EnrichMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

// Queue defines the interface for a message queue.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue adds a message to the queue.
	Enqueue(msg Message) error

	// Dequeue retrieves messages from the queue.
	// Returns up to maxMessages, blocks for timeout.
	Dequeue(maxMessages int, timeout time.Duration) ([]*QueuedMessage, error)

	// Ack acknowledges successful processing of a message.
	Ack(messageID string) error

	// Nack indicates processing failure, message will be retried.
	Nack(messageID string) error

	// MoveToDeadLetter moves a message to the dead letter queue.
	MoveToDeadLetter(messageID string, reason string) error

	// Depth returns the current queue depth.
	Depth() (int64, error)

	// Close closes the queue connection.
	Close() error
}

// QueueConfig configures queue behavior.
type QueueConfig struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetentionPeriod   time.Duration `yaml:"retention_period"`
}

// Queue names.
const (
	QueueSync      = "recalld:sync"
	QueueReconcile = "recalld:reconcile"
	QueueIngest    = "recalld:ingest"
	QueueEnrich    = "recalld:enrich"
)

// DefaultQueueConfigs returns default configurations for each queue type.
func DefaultQueueConfigs() map[string]QueueConfig {
	return map[string]QueueConfig{
		QueueSync: {
			Name:              QueueSync,
			VisibilityTimeout: 120 * time.Second,
			MaxRetries:        3,
			RetentionPeriod:   24 * time.Hour,
		},
		QueueReconcile: {
			Name:              QueueReconcile,
			VisibilityTimeout: 60 * time.Second,
			MaxRetries:        3,
			RetentionPeriod:   24 * time.Hour,
		},
		QueueIngest: {
			Name:              QueueIngest,
			VisibilityTimeout: 120 * time.Second,
			MaxRetries:        3,
			RetentionPeriod:   24 * time.Hour,
		},
		QueueEnrich: {
			Name:              QueueEnrich,
			VisibilityTimeout: 300 * time.Second,
			MaxRetries:        3,
			RetentionPeriod:   24 * time.Hour,
		},
	}
}

// Verify interface compliance
var (
	_ Message = (*SyncMessage)(nil)
	_ Message = (*ReconcileMessage)(nil)
	_ Message = (*IngestMessage)(nil)
	_ Message = (*EnrichMessage)(nil)
)
