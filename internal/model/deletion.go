package model

import (
	"time"

	"github.com/google/uuid"
)

type DeletionStatus string

const (
	DeletionStatusPending    DeletionStatus = "pending"
	DeletionStatusProcessing DeletionStatus = "processing"
	DeletionStatusCompleted  DeletionStatus = "completed"
	DeletionStatusRejected   DeletionStatus = "rejected"
)

// DeletionMode selects between the grace-period workflow and
// synchronous irreversible erasure.
type DeletionMode string

const (
	DeletionModeDelayed   DeletionMode = "delayed"
	DeletionModeImmediate DeletionMode = "immediate"
)

func (m DeletionMode) Valid() bool {
	return m == DeletionModeDelayed || m == DeletionModeImmediate
}

// DeletionRequest tracks a delayed erasure request through its
// lifecycle. ScheduledFor is RequestedAt plus the configured grace
// period; the worker erases once it passes.
type DeletionRequest struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	UserID       uuid.UUID      `json:"user_id" db:"user_id"`
	Reason       *string        `json:"reason,omitempty" db:"reason"`
	Status       DeletionStatus `json:"status" db:"status"`
	RequestedAt  time.Time      `json:"requested_at" db:"requested_at"`
	ScheduledFor time.Time      `json:"scheduled_for" db:"scheduled_for"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
}

type DeleteAccountRequest struct {
	Reason     string       `json:"reason"`
	DeleteType DeletionMode `json:"delete_type" binding:"required,deletion_mode"`
}
