package model

import (
	"time"

	"github.com/google/uuid"
)

// ConsentType is a closed set; values arriving over the wire are
// checked with Valid before they reach business logic.
type ConsentType string

const (
	ConsentTermsOfService   ConsentType = "terms_of_service"
	ConsentPrivacyPolicy    ConsentType = "privacy_policy"
	ConsentDataProcessing   ConsentType = "data_processing"
	ConsentDataSharing      ConsentType = "data_sharing"
	ConsentMarketing        ConsentType = "marketing"
	ConsentPushNotification ConsentType = "push_notifications"
)

// Current document versions presented at signup.
const (
	CurrentTermsVersion   = "1.0.0"
	CurrentPrivacyVersion = "1.0.0"
)

func (t ConsentType) Valid() bool {
	switch t {
	case ConsentTermsOfService, ConsentPrivacyPolicy, ConsentDataProcessing,
		ConsentDataSharing, ConsentMarketing, ConsentPushNotification:
		return true
	}
	return false
}

// RequiredConsents are the types a user must have granted before the
// application may process health data on their behalf.
func RequiredConsents() []ConsentType {
	return []ConsentType{ConsentTermsOfService, ConsentPrivacyPolicy, ConsentDataProcessing}
}

// ConsentRecord is append-only: a revocation or re-grant inserts a new
// row, never mutates an old one. Exactly one of GrantedAt/RevokedAt is
// set, consistent with Granted.
type ConsentRecord struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	ConsentType ConsentType `json:"consent_type" db:"consent_type"`
	Granted     bool        `json:"granted" db:"granted"`
	Version     string      `json:"version" db:"version"`
	IPAddress   *string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   *string     `json:"user_agent,omitempty" db:"user_agent"`
	GrantedAt   *time.Time  `json:"granted_at,omitempty" db:"granted_at"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Active reports whether this record represents a standing grant.
func (c *ConsentRecord) Active() bool {
	return c.Granted && c.RevokedAt == nil
}

type UpdateConsentRequest struct {
	ConsentType ConsentType `json:"consent_type" binding:"required,consent_type"`
	Granted     *bool       `json:"granted" binding:"required"`
	Version     string      `json:"version" binding:"required"`
}
