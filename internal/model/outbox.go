package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types published through the outbox.
const (
	EventInviteCreated      = "invite.created"
	EventConnectionAccepted = "connection.accepted"
	EventDeletionScheduled  = "deletion.scheduled"
	EventDataExported       = "data.exported"
	EventSessionChanged     = "session.changed"
)

// OutboxEvent is written in the same flow as the primary action and
// published asynchronously by the worker binary.
type OutboxEvent struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	EventType    string          `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Status       OutboxStatus    `json:"status" db:"status"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int             `json:"retry_count" db:"retry_count"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
