package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/email"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

// Service orchestrates the data-subject rights: portability (export)
// and erasure (deletion), over the stores that hold the subject's
// data.
type Service struct {
	users          repository.UserRepository
	questionnaires repository.QuestionnaireRepository
	consents       repository.ConsentRepository
	deletions      repository.DeletionRepository
	connections    *connection.Service
	auditSvc       *audit.Service
	auditor        *audit.Logger
	events         *event.Service
	metrics        *metrics.Metrics
	email          email.Service
	gracePeriod    time.Duration
}

type Config struct {
	GracePeriod time.Duration
}

func NewService(
	users repository.UserRepository,
	questionnaires repository.QuestionnaireRepository,
	consents repository.ConsentRepository,
	deletions repository.DeletionRepository,
	connections *connection.Service,
	auditSvc *audit.Service,
	auditor *audit.Logger,
	events *event.Service,
	m *metrics.Metrics,
	sender email.Service,
	cfg Config,
) *Service {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * 24 * time.Hour
	}
	return &Service{
		users:          users,
		questionnaires: questionnaires,
		consents:       consents,
		deletions:      deletions,
		connections:    connections,
		auditSvc:       auditSvc,
		auditor:        auditor,
		events:         events,
		metrics:        m,
		email:          sender,
		gracePeriod:    grace,
	}
}

// Export assembles the complete snapshot of one subject's data. Any
// sub-fetch failure fails the whole export; a partial bundle is never
// returned. Exactly one export audit entry is appended before the
// bundle is handed back.
func (s *Service) Export(ctx context.Context, userID uuid.UUID, meta connection.RequestMeta) (*model.ExportBundle, error) {
	profile, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("profile", err)
		}
		return nil, apperrors.Persistence(err)
	}

	questionnaires, err := s.questionnaires.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	consents, err := s.consents.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	auditLogs, err := s.auditSvc.ListAllForTarget(ctx, userID)
	if err != nil {
		return nil, err
	}

	connections, err := s.connections.ListActive(ctx, userID, profile.Role)
	if err != nil {
		return nil, err
	}

	// The export entry is part of the operation's contract: the caller
	// must be able to see in the trail that a full export happened.
	if err := s.auditor.LogSync(ctx, audit.Entry{
		Actor:     userID,
		Target:    userID,
		Action:    model.AuditActionExport,
		TableName: model.AuditTableProfiles,
		Metadata:  map[string]interface{}{"export_type": "full_data_export", "format": "json"},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}); err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.metrics.ExportsTotal.Inc()
	_ = s.events.Emit(ctx, model.EventDataExported, map[string]string{"user_id": userID.String()})

	return &model.ExportBundle{
		Profile:        profile,
		Questionnaires: questionnaires,
		Consents:       consents,
		AuditLogs:      auditLogs,
		Connections:    connections,
		GeneratedAt:    time.Now(),
	}, nil
}

// RequestDeletion handles the erasure right. Delayed mode records a
// request that the worker executes after the grace period; immediate
// mode erases synchronously in one transaction. Only the subject may
// request deletion of their own data; handlers enforce that by passing
// the authenticated caller's id.
func (s *Service) RequestDeletion(ctx context.Context, userID uuid.UUID, reason string, mode model.DeletionMode, meta connection.RequestMeta) (*model.DeletionRequest, error) {
	if !mode.Valid() {
		return nil, apperrors.Validation("invalid deletion mode", nil)
	}

	if mode == model.DeletionModeImmediate {
		if err := s.deletions.Erase(ctx, userID); err != nil {
			s.metrics.DeletionsProcessed.WithLabelValues("failed").Inc()
			return nil, apperrors.Persistence(err)
		}
		s.metrics.DeletionsProcessed.WithLabelValues("immediate").Inc()
		s.auditor.Log(ctx, audit.Entry{
			Actor:     userID,
			Target:    userID,
			Action:    model.AuditActionDelete,
			TableName: model.AuditTableProfiles,
			Metadata:  map[string]interface{}{"mode": "immediate"},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		return nil, nil
	}

	now := time.Now()
	req := &model.DeletionRequest{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       model.DeletionStatusPending,
		RequestedAt:  now,
		ScheduledFor: now.Add(s.gracePeriod),
	}
	if reason != "" {
		req.Reason = &reason
	}

	if err := s.deletions.Create(ctx, req); err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     userID,
		Target:    userID,
		Action:    model.AuditActionDelete,
		TableName: model.AuditTableProfiles,
		RecordID:  &req.ID,
		Metadata: map[string]interface{}{
			"mode":          "delayed",
			"scheduled_for": req.ScheduledFor.Format(time.RFC3339),
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	_ = s.events.Emit(ctx, model.EventDeletionScheduled, req)
	if s.email != nil {
		if profile, err := s.users.Get(ctx, userID); err == nil {
			_ = s.email.SendDeletionScheduled(ctx, profile.Email, req.ScheduledFor)
		}
	}

	return req, nil
}

// ListDeletionRequests returns the subject's own requests, newest
// first.
func (s *Service) ListDeletionRequests(ctx context.Context, userID uuid.UUID) ([]*model.DeletionRequest, error) {
	requests, err := s.deletions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return requests, nil
}
