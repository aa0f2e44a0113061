package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
)

// Sentinel errors surfaced by implementations so services can map them
// onto the user-facing taxonomy.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// UserRepository handles profile and credential rows.
	UserRepository interface {
		Create(ctx context.Context, profile *model.Profile) error
		Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
		GetByEmail(ctx context.Context, email string) (*model.Profile, error)
		// FindByEmailAndRole resolves an invite counterpart; the email
		// match is case-insensitive.
		FindByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Profile, error)
		Update(ctx context.Context, profile *model.Profile) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// ConsentRepository is append-only; there is no update or single
	// delete, only full erasure through DeletionRepository.
	ConsentRepository interface {
		Create(ctx context.Context, record *model.ConsentRecord) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.ConsentRecord, error)
		// Latest returns the most recent record for the (user, type)
		// pair, or ErrNotFound.
		Latest(ctx context.Context, userID uuid.UUID, consentType model.ConsentType) (*model.ConsentRecord, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditLog) error
		// ListByTarget returns entries about a data subject, newest
		// first.
		ListByTarget(ctx context.Context, targetUserID uuid.UUID, limit, offset int) ([]*model.AuditLog, error)
		CountByTarget(ctx context.Context, targetUserID uuid.UUID) (int64, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// ConnectionRepository backs the doctor-patient workflow. Create
	// must surface ErrDuplicate when the (doctor_id, patient_id)
	// unique constraint fires.
	ConnectionRepository interface {
		Create(ctx context.Context, conn *model.Connection) error
		Get(ctx context.Context, id uuid.UUID) (*model.Connection, error)
		GetByPair(ctx context.Context, doctorID, patientID uuid.UUID) (*model.Connection, error)
		Accept(ctx context.Context, id uuid.UUID, acceptedAt time.Time) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListActive(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error)
		ListPending(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error)
	}

	QuestionnaireRepository interface {
		Create(ctx context.Context, q *model.Questionnaire) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Questionnaire, error)
	}

	// DeletionRepository tracks erasure requests and performs the
	// erasure itself.
	DeletionRepository interface {
		Create(ctx context.Context, req *model.DeletionRequest) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.DeletionRequest, error)
		ListDue(ctx context.Context, now time.Time, limit int) ([]*model.DeletionRequest, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeletionStatus) error
		// Erase removes every row owned by the subject in one
		// transaction. The audit trail of the erasure survives.
		Erase(ctx context.Context, userID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	}
)
