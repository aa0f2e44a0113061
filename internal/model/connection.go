package model

import (
	"time"

	"github.com/google/uuid"
)

// Connection links a doctor to a patient for data sharing. A row with
// AcceptedAt nil is a pending invite; once set it is active. The pair
// (doctor_id, patient_id) is unique while a row exists; rejection,
// cancellation and disconnection remove the row.
type Connection struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DoctorID   uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	PatientID  uuid.UUID  `json:"patient_id" db:"patient_id"`
	InvitedAt  time.Time  `json:"invited_at" db:"invited_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
}

func (c *Connection) Pending() bool {
	return c.AcceptedAt == nil
}

func (c *Connection) Active() bool {
	return c.AcceptedAt != nil
}

// Involves reports whether userID is a party to the connection.
func (c *Connection) Involves(userID uuid.UUID) bool {
	return c.DoctorID == userID || c.PatientID == userID
}

// ConnectionView is a connection joined with the counterpart profile,
// as listed to either party.
type ConnectionView struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	InvitedAt   time.Time     `json:"invited_at" db:"invited_at"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty" db:"accepted_at"`
	Counterpart PublicProfile `json:"counterpart"`
}

type InviteRequest struct {
	TargetEmail string `json:"target_email" binding:"required,email"`
}

// InviteActionRequest resolves a pending invite.
type InviteActionRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}
