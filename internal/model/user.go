package model

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two sides of a data-sharing connection.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Counterpart returns the role on the other side of a connection.
func (r Role) Counterpart() Role {
	if r == RolePatient {
		return RoleDoctor
	}
	return RolePatient
}

// Profile is the application-owned identity record. Credentials live
// next to it; the opaque ID is what every other table references.
type Profile struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	FullName     string     `json:"full_name" db:"full_name"`
	Role         Role       `json:"role" db:"role"`
	PasswordHash string     `json:"-" db:"password_hash"`
	CRM          *string    `json:"crm,omitempty" db:"crm"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicProfile is the projection exposed to connected counterparts.
type PublicProfile struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Email    string    `json:"email" db:"email"`
	FullName string    `json:"full_name" db:"full_name"`
	Role     Role      `json:"role" db:"role"`
}

type SignupRequest struct {
	Email                  string `json:"email" binding:"required,email"`
	Password               string `json:"password" binding:"required,min=8"`
	FullName               string `json:"full_name" binding:"required"`
	Role                   Role   `json:"role" binding:"required,role"`
	CRM                    string `json:"crm"`
	TermsAccepted          bool   `json:"terms_accepted"`
	PrivacyAccepted        bool   `json:"privacy_accepted"`
	DataProcessingAccepted bool   `json:"data_processing_accepted"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenClaims struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}
