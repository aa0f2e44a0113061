package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/consent"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/auth"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/security"
)

type Service struct {
	users    repository.UserRepository
	consents *consent.Service
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	events   *event.Service
	log      *logger.Logger
}

func NewService(users repository.UserRepository, consents *consent.Service, jwtSvc auth.JWTService, hasher security.PasswordHasher, events *event.Service, log *logger.Logger) *Service {
	return &Service{
		users:    users,
		consents: consents,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		events:   events,
		log:      log,
	}
}

// SignupMeta carries transport details recorded with the signup
// consents.
type SignupMeta struct {
	IPAddress string
	UserAgent string
}

// Signup creates a profile and records the three required consents. If
// the consent set cannot be recorded completely the profile is removed
// again: an account without its full consent trail must not exist.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest, meta SignupMeta) (*model.Profile, error) {
	if !req.Role.Valid() {
		return nil, apperrors.Validation("invalid role", nil)
	}
	if !req.TermsAccepted || !req.PrivacyAccepted || !req.DataProcessingAccepted {
		return nil, apperrors.Validation("all required consents must be accepted", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation("invalid password", err)
	}

	profile := &model.Profile{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		PasswordHash: hash,
	}
	if req.Role == model.RoleDoctor && req.CRM != "" {
		crm := req.CRM
		profile.CRM = &crm
	}

	if err := s.users.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("an account with this email already exists", nil)
		}
		return nil, apperrors.Persistence(err)
	}

	if err := s.consents.RecordSignupConsents(ctx, profile.ID, consent.SignupConsents{
		TermsAccepted:          req.TermsAccepted,
		PrivacyAccepted:        req.PrivacyAccepted,
		DataProcessingAccepted: req.DataProcessingAccepted,
		IPAddress:              meta.IPAddress,
		UserAgent:              meta.UserAgent,
	}); err != nil {
		// A partial consent set means the signup did not happen.
		if delErr := s.users.Delete(ctx, profile.ID); delErr != nil {
			s.log.Error(delErr, "failed to roll back profile after consent failure", "user_id", profile.ID.String())
		}
		return nil, err
	}

	return profile, nil
}

// Login verifies credentials and issues the token pair.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	profile, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthenticated(errors.New("invalid credentials"))
		}
		return nil, apperrors.Persistence(err)
	}

	if err := s.hasher.Compare(profile.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthenticated(errors.New("invalid credentials"))
	}

	now := time.Now()
	profile.LastLoginAt = &now
	if err := s.users.Update(ctx, profile); err != nil {
		s.log.Error(err, "failed to update last login", "user_id", profile.ID.String())
	}

	tokens, err := s.issueTokens(profile)
	if err != nil {
		return nil, err
	}

	// Session changes go out on the broker instead of a framework
	// callback so interested parties can subscribe explicitly.
	_ = s.events.Emit(ctx, model.EventSessionChanged, map[string]string{
		"user_id": profile.ID.String(),
		"state":   "signed_in",
	})

	return tokens, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}

	profile, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthenticated(errors.New("account no longer exists"))
		}
		return nil, apperrors.Persistence(err)
	}

	return s.issueTokens(profile)
}

// ValidateToken resolves an access token to its claims.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}
	return claims, nil
}

// GetProfile loads a profile by id.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	profile, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("profile", err)
		}
		return nil, apperrors.Persistence(err)
	}
	return profile, nil
}

func (s *Service) issueTokens(profile *model.Profile) (*model.TokenResponse, error) {
	access, err := s.jwtSvc.GenerateAccessToken(profile)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.jwtSvc.GenerateRefreshToken(profile)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtSvc.AccessExpiry().Seconds()),
	}, nil
}
