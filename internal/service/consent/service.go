package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

type Service struct {
	repo repository.ConsentRepository
}

func NewService(repo repository.ConsentRepository) *Service {
	return &Service{repo: repo}
}

// RecordParams describes one consent decision.
type RecordParams struct {
	UserID      uuid.UUID
	ConsentType model.ConsentType
	Granted     bool
	Version     string
	IPAddress   string
	UserAgent   string
}

// Record inserts a new consent record; history is append-only, so a
// revocation or re-grant never touches earlier rows.
func (s *Service) Record(ctx context.Context, p RecordParams) error {
	if !p.ConsentType.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown consent type %q", p.ConsentType), nil)
	}
	if p.Version == "" {
		return apperrors.Validation("consent version is required", nil)
	}

	now := time.Now()
	record := &model.ConsentRecord{
		ID:          uuid.New(),
		UserID:      p.UserID,
		ConsentType: p.ConsentType,
		Granted:     p.Granted,
		Version:     p.Version,
		CreatedAt:   now,
	}
	if p.IPAddress != "" {
		record.IPAddress = &p.IPAddress
	}
	if p.UserAgent != "" {
		record.UserAgent = &p.UserAgent
	}
	if p.Granted {
		record.GrantedAt = &now
	} else {
		record.RevokedAt = &now
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}

// SignupConsents carries the decisions collected on the signup form.
type SignupConsents struct {
	TermsAccepted          bool
	PrivacyAccepted        bool
	DataProcessingAccepted bool
	IPAddress              string
	UserAgent              string
}

// RecordSignupConsents writes the three required records. Any failure
// is returned so the caller can treat the signup as incomplete; a
// partial consent set must not count as a finished registration.
func (s *Service) RecordSignupConsents(ctx context.Context, userID uuid.UUID, c SignupConsents) error {
	decisions := []RecordParams{
		{UserID: userID, ConsentType: model.ConsentTermsOfService, Granted: c.TermsAccepted, Version: model.CurrentTermsVersion},
		{UserID: userID, ConsentType: model.ConsentPrivacyPolicy, Granted: c.PrivacyAccepted, Version: model.CurrentPrivacyVersion},
		{UserID: userID, ConsentType: model.ConsentDataProcessing, Granted: c.DataProcessingAccepted, Version: model.CurrentPrivacyVersion},
	}

	for _, d := range decisions {
		d.IPAddress = c.IPAddress
		d.UserAgent = c.UserAgent
		if err := s.Record(ctx, d); err != nil {
			return fmt.Errorf("failed to record %s consent: %w", d.ConsentType, err)
		}
	}
	return nil
}

// CurrentConsents projects the latest record per type.
func (s *Service) CurrentConsents(ctx context.Context, userID uuid.UUID) (map[model.ConsentType]*model.ConsentRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	current := make(map[model.ConsentType]*model.ConsentRecord)
	for _, record := range records {
		existing, ok := current[record.ConsentType]
		if !ok || record.CreatedAt.After(existing.CreatedAt) {
			current[record.ConsentType] = record
		}
	}
	return current, nil
}

// History returns every consent record for the user, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*model.ConsentRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return records, nil
}

// HasActiveConsent reports whether the latest record for the type is a
// standing grant.
func (s *Service) HasActiveConsent(ctx context.Context, userID uuid.UUID, consentType model.ConsentType) (bool, error) {
	latest, err := s.repo.Latest(ctx, userID, consentType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Persistence(err)
	}
	return latest.Active(), nil
}

// RequiredConsentsSatisfied reports whether every required consent is
// currently granted.
func (s *Service) RequiredConsentsSatisfied(ctx context.Context, userID uuid.UUID) (bool, error) {
	for _, consentType := range model.RequiredConsents() {
		active, err := s.HasActiveConsent(ctx, userID, consentType)
		if err != nil {
			return false, err
		}
		if !active {
			return false, nil
		}
	}
	return true, nil
}
