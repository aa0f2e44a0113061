package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/consent"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

// Policy holds the consent-enforcement knob: when EnforceConsent is
// set, every submission re-checks the required consent set instead of
// trusting the signup-time check.
type Policy struct {
	EnforceConsent bool
}

type Service struct {
	repo        repository.QuestionnaireRepository
	consents    *consent.Service
	connections *connection.Service
	auditor     *audit.Logger
	policy      Policy
}

func NewService(repo repository.QuestionnaireRepository, consents *consent.Service, connections *connection.Service, auditor *audit.Logger, policy Policy) *Service {
	return &Service{
		repo:        repo,
		consents:    consents,
		connections: connections,
		auditor:     auditor,
		policy:      policy,
	}
}

// Submit stores one completed weekly questionnaire for the caller.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, req *model.SubmitQuestionnaireRequest, meta connection.RequestMeta) (*model.Questionnaire, error) {
	if s.policy.EnforceConsent {
		ok, err := s.consents.RequiredConsentsSatisfied(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.Forbidden("required consents are not granted", nil)
		}
	}

	answers, err := json.Marshal(req.HabitAnswers)
	if err != nil {
		return nil, apperrors.Validation("invalid habit answers", err)
	}

	depressive, activation := req.Scores()
	q := &model.Questionnaire{
		ID:              uuid.New(),
		UserID:          userID,
		DepressiveScore: depressive,
		ActivationScore: activation,
		Answers:         answers,
		CompletedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, q); err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     userID,
		Target:    userID,
		Action:    model.AuditActionCreate,
		TableName: model.AuditTableQuestionnaires,
		RecordID:  &q.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	return q, nil
}

// ListOwn returns the caller's questionnaires, newest first.
func (s *Service) ListOwn(ctx context.Context, userID uuid.UUID, meta connection.RequestMeta) ([]*model.Questionnaire, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     userID,
		Target:    userID,
		Action:    model.AuditActionView,
		TableName: model.AuditTableQuestionnaires,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	return items, nil
}

// ListForDoctor returns a patient's questionnaires to a connected
// doctor. Without an active connection the call is denied and an
// access_denied entry targeted at the patient is recorded.
func (s *Service) ListForDoctor(ctx context.Context, doctorID, patientID uuid.UUID, meta connection.RequestMeta) ([]*model.Questionnaire, error) {
	connected, err := s.connections.HasActiveConnection(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !connected {
		s.auditor.Log(ctx, audit.Entry{
			Actor:     doctorID,
			Target:    patientID,
			Action:    model.AuditActionAccessDenied,
			TableName: model.AuditTableQuestionnaires,
			Metadata:  map[string]interface{}{"reason": "no active connection"},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		return nil, apperrors.Forbidden("no active connection to this patient", nil)
	}

	items, err := s.repo.ListByUser(ctx, patientID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     doctorID,
		Target:    patientID,
		Action:    model.AuditActionView,
		TableName: model.AuditTableQuestionnaires,
		Metadata:  map[string]interface{}{"relationship": "doctor-patient"},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	return items, nil
}

// ParseHabitAnswers decodes the stored categorical answers.
func ParseHabitAnswers(q *model.Questionnaire) (model.JSONMap, error) {
	if len(q.Answers) == 0 {
		return model.JSONMap{}, nil
	}
	var answers model.JSONMap
	if err := json.Unmarshal(q.Answers, &answers); err != nil {
		return nil, fmt.Errorf("failed to parse habit answers: %w", err)
	}
	return answers, nil
}
