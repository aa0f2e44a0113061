package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of events recorded against personal
// data. Entries are immutable once written.
type AuditAction string

const (
	AuditActionView         AuditAction = "view"
	AuditActionCreate       AuditAction = "create"
	AuditActionUpdate       AuditAction = "update"
	AuditActionDelete       AuditAction = "delete"
	AuditActionExport       AuditAction = "export"
	AuditActionShare        AuditAction = "share"
	AuditActionAccessDenied AuditAction = "access_denied"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionView, AuditActionCreate, AuditActionUpdate, AuditActionDelete,
		AuditActionExport, AuditActionShare, AuditActionAccessDenied:
		return true
	}
	return false
}

// Logical resource names used in audit entries.
const (
	AuditTableProfiles       = "profiles"
	AuditTableQuestionnaires = "questionnaires"
	AuditTableConsents       = "consent_records"
	AuditTableConnections    = "doctor_patient"
)

// AuditLog records one access or mutation of a data subject's personal
// data. UserID is the actor; TargetUserID is the subject.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	TargetUserID uuid.UUID       `json:"target_user_id" db:"target_user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	TableName    string          `json:"table_name" db:"table_name"`
	RecordID     *uuid.UUID      `json:"record_id,omitempty" db:"record_id"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
