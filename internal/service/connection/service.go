package connection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/email"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

type Service struct {
	repo    repository.ConnectionRepository
	users   repository.UserRepository
	auditor *audit.Logger
	events  *event.Service
	email   email.Service
}

// NewService builds the workflow service. sender may be nil, in which
// case invites are created without a mail notice.
func NewService(repo repository.ConnectionRepository, users repository.UserRepository, auditor *audit.Logger, events *event.Service, sender email.Service) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		auditor: auditor,
		events:  events,
		email:   sender,
	}
}

// RequestMeta carries transport details into the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Invite creates a doctor-patient link. The counterpart is resolved by
// email against the opposite role. A patient sharing with a doctor is
// accepted at creation; a doctor inviting a patient starts pending.
// The pair-uniqueness constraint on the store backs the pre-check, so
// a concurrent duplicate insert still comes back as a conflict.
func (s *Service) Invite(ctx context.Context, initiatorID uuid.UUID, initiatorRole model.Role, counterpartEmail string, meta RequestMeta) (*model.Connection, error) {
	addr := strings.TrimSpace(counterpartEmail)
	if addr == "" {
		return nil, apperrors.Validation("counterpart email is required", nil)
	}
	if !initiatorRole.Valid() {
		return nil, apperrors.Validation("invalid initiator role", nil)
	}

	counterpart, err := s.users.FindByEmailAndRole(ctx, addr, initiatorRole.Counterpart())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Distinguish "wrong role" from "no such user" for a
			// clearer message.
			if other, lookupErr := s.users.GetByEmail(ctx, addr); lookupErr == nil && other != nil {
				return nil, apperrors.Conflict("user with this email has the same role", nil)
			}
			return nil, apperrors.NotFound("user with this email", err)
		}
		return nil, apperrors.Persistence(err)
	}

	var doctorID, patientID uuid.UUID
	if initiatorRole == model.RoleDoctor {
		doctorID, patientID = initiatorID, counterpart.ID
	} else {
		doctorID, patientID = counterpart.ID, initiatorID
	}

	if existing, err := s.repo.GetByPair(ctx, doctorID, patientID); err == nil {
		if existing.Active() {
			return nil, apperrors.Conflict("connection already active", nil)
		}
		return nil, apperrors.Conflict("invite already pending", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Persistence(err)
	}

	now := time.Now()
	conn := &model.Connection{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		InvitedAt: now,
	}
	// Patient-initiated sharing is auto-accepted; the patient is the
	// data subject and has already decided to share.
	if initiatorRole == model.RolePatient {
		conn.AcceptedAt = &now
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race with another invite for the same pair.
			if existing, pairErr := s.repo.GetByPair(ctx, doctorID, patientID); pairErr == nil && existing.Active() {
				return nil, apperrors.Conflict("connection already active", nil)
			}
			return nil, apperrors.Conflict("invite already pending", nil)
		}
		return nil, apperrors.Persistence(err)
	}

	if conn.Active() {
		s.auditor.Log(ctx, audit.Entry{
			Actor:     initiatorID,
			Target:    patientID,
			Action:    model.AuditActionShare,
			TableName: model.AuditTableConnections,
			RecordID:  &conn.ID,
			Metadata:  map[string]interface{}{"relationship": "doctor-patient", "initiated_by": string(initiatorRole)},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
	}

	// Notifications are advisory; the connection row is the source of
	// truth.
	_ = s.events.Emit(ctx, model.EventInviteCreated, conn)
	if !conn.Active() && s.email != nil {
		if inviter, err := s.users.Get(ctx, initiatorID); err == nil {
			_ = s.email.SendInviteNotice(ctx, counterpart.Email, inviter.FullName)
		}
	}

	return conn, nil
}

// Accept marks a pending invite as active. Only the invited patient
// may accept.
func (s *Service) Accept(ctx context.Context, inviteID, actorID uuid.UUID, meta RequestMeta) error {
	conn, err := s.getInvite(ctx, inviteID)
	if err != nil {
		return err
	}

	if conn.PatientID != actorID {
		s.logDenied(ctx, actorID, conn.PatientID, "not the invited patient", meta)
		return apperrors.Forbidden("only the invited patient may respond to this invite", nil)
	}
	if conn.Active() {
		return apperrors.Conflict("invite already resolved", nil)
	}

	now := time.Now()
	if err := s.repo.Accept(ctx, inviteID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Conflict("invite already resolved", nil)
		}
		return apperrors.Persistence(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     actorID,
		Target:    conn.PatientID,
		Action:    model.AuditActionShare,
		TableName: model.AuditTableConnections,
		RecordID:  &conn.ID,
		Metadata:  map[string]interface{}{"relationship": "doctor-patient", "doctor_id": conn.DoctorID.String()},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	conn.AcceptedAt = &now
	// Notification only; the accept itself already committed.
	_ = s.events.Emit(ctx, model.EventConnectionAccepted, conn)
	return nil
}

// Reject declines a pending invite and removes it. Only the invited
// patient may reject.
func (s *Service) Reject(ctx context.Context, inviteID, actorID uuid.UUID, meta RequestMeta) error {
	conn, err := s.getInvite(ctx, inviteID)
	if err != nil {
		return err
	}

	if conn.PatientID != actorID {
		s.logDenied(ctx, actorID, conn.PatientID, "not the invited patient", meta)
		return apperrors.Forbidden("only the invited patient may respond to this invite", nil)
	}
	if conn.Active() {
		return apperrors.Conflict("invite already resolved", nil)
	}

	if err := s.repo.Delete(ctx, inviteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("invite", err)
		}
		return apperrors.Persistence(err)
	}
	return nil
}

// Cancel withdraws a pending invite. Only the inviting doctor may
// cancel.
func (s *Service) Cancel(ctx context.Context, inviteID, actorID uuid.UUID, meta RequestMeta) error {
	conn, err := s.getInvite(ctx, inviteID)
	if err != nil {
		return err
	}

	if conn.DoctorID != actorID {
		s.logDenied(ctx, actorID, conn.PatientID, "not the inviting doctor", meta)
		return apperrors.Forbidden("only the inviting doctor may cancel this invite", nil)
	}
	if conn.Active() {
		return apperrors.Conflict("invite already resolved", nil)
	}

	if err := s.repo.Delete(ctx, inviteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("invite", err)
		}
		return apperrors.Persistence(err)
	}
	return nil
}

// Disconnect terminates an active connection. Either party may do so.
func (s *Service) Disconnect(ctx context.Context, connectionID, actorID uuid.UUID, meta RequestMeta) error {
	conn, err := s.getInvite(ctx, connectionID)
	if err != nil {
		return err
	}

	if !conn.Involves(actorID) {
		s.logDenied(ctx, actorID, conn.PatientID, "not a party to this connection", meta)
		return apperrors.Forbidden("you are not a party to this connection", nil)
	}

	if err := s.repo.Delete(ctx, connectionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("connection", err)
		}
		return apperrors.Persistence(err)
	}
	return nil
}

// ListActive returns the caller's accepted connections, most recently
// accepted first.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	views, err := s.repo.ListActive(ctx, userID, role)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return views, nil
}

// ListPending returns unresolved invites: sent ones for a doctor,
// received ones for a patient.
func (s *Service) ListPending(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	views, err := s.repo.ListPending(ctx, userID, role)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return views, nil
}

// HasActiveConnection reports whether the doctor currently has an
// accepted link to the patient.
func (s *Service) HasActiveConnection(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	conn, err := s.repo.GetByPair(ctx, doctorID, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Persistence(err)
	}
	return conn.Active(), nil
}

func (s *Service) getInvite(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("invite", err)
		}
		return nil, apperrors.Persistence(err)
	}
	return conn, nil
}

func (s *Service) logDenied(ctx context.Context, actorID, targetID uuid.UUID, reason string, meta RequestMeta) {
	s.auditor.Log(ctx, audit.Entry{
		Actor:     actorID,
		Target:    targetID,
		Action:    model.AuditActionAccessDenied,
		TableName: model.AuditTableConnections,
		Metadata:  map[string]interface{}{"reason": reason},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}
