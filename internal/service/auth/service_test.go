package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/consent"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	jwtauth "github.com/andreyrocca-psiq/qsm-h-app/pkg/auth"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/security"
)

type fakeUserRepo struct {
	profiles map[uuid.UUID]*model.Profile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{profiles: make(map[uuid.UUID]*model.Profile)}
}

func (r *fakeUserRepo) Create(_ context.Context, profile *model.Profile) error {
	for _, p := range r.profiles {
		if p.Email == profile.Email {
			return repository.ErrDuplicate
		}
	}
	r.profiles[profile.ID] = profile
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByEmailAndRole(_ context.Context, email string, role model.Role) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email && p.Role == role {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, profile *model.Profile) error {
	r.profiles[profile.ID] = profile
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.profiles, id)
	return nil
}

type fakeConsentRepo struct {
	records []*model.ConsentRecord
	failAt  int
}

func (r *fakeConsentRepo) Create(_ context.Context, rec *model.ConsentRecord) error {
	if r.failAt > 0 && len(r.records) >= r.failAt {
		return assert.AnError
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeConsentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.ConsentRecord, error) {
	var out []*model.ConsentRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeConsentRepo) Latest(_ context.Context, _ uuid.UUID, _ model.ConsentType) (*model.ConsentRecord, error) {
	return nil, repository.ErrNotFound
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

type fixture struct {
	svc      *Service
	users    *fakeUserRepo
	consents *fakeConsentRepo
	outbox   *fakeOutboxRepo
}

func newFixture() *fixture {
	users := newFakeUserRepo()
	consents := &fakeConsentRepo{}
	outbox := &fakeOutboxRepo{}

	jwtSvc := jwtauth.NewJWTService(jwtauth.Config{
		Secret:        "test-secret",
		RefreshSecret: "test-refresh-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
	})

	svc := NewService(
		users,
		consent.NewService(consents),
		jwtSvc,
		security.NewBcryptHasher(bcrypt.MinCost),
		event.NewService(outbox),
		logger.NewLogger(nil),
	)
	return &fixture{svc: svc, users: users, consents: consents, outbox: outbox}
}

func signupReq() *model.SignupRequest {
	return &model.SignupRequest{
		Email:                  "  Maria@Example.com ",
		Password:               "s3nh4-muito-forte",
		FullName:               "Maria Silva",
		Role:                   model.RolePatient,
		TermsAccepted:          true,
		PrivacyAccepted:        true,
		DataProcessingAccepted: true,
	}
}

func TestSignupCreatesProfileAndConsents(t *testing.T) {
	f := newFixture()

	profile, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{IPAddress: "10.4.4.4"})
	require.NoError(t, err)

	assert.Equal(t, "maria@example.com", profile.Email)
	assert.NotEqual(t, "s3nh4-muito-forte", profile.PasswordHash)

	// All three required consents are on record.
	require.Len(t, f.consents.records, 3)
	types := make(map[model.ConsentType]bool)
	for _, rec := range f.consents.records {
		types[rec.ConsentType] = true
		assert.Equal(t, profile.ID, rec.UserID)
		assert.True(t, rec.Granted)
		require.NotNil(t, rec.IPAddress)
		assert.Equal(t, "10.4.4.4", *rec.IPAddress)
	}
	for _, required := range model.RequiredConsents() {
		assert.True(t, types[required])
	}
}

func TestSignupDoctorKeepsCRM(t *testing.T) {
	f := newFixture()
	req := signupReq()
	req.Role = model.RoleDoctor
	req.CRM = "CRM/SP 123456"

	profile, err := f.svc.Signup(context.Background(), req, SignupMeta{})
	require.NoError(t, err)
	require.NotNil(t, profile.CRM)
	assert.Equal(t, "CRM/SP 123456", *profile.CRM)
}

func TestSignupRequiresAllConsents(t *testing.T) {
	f := newFixture()
	req := signupReq()
	req.DataProcessingAccepted = false

	_, err := f.svc.Signup(context.Background(), req, SignupMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
	assert.Empty(t, f.users.profiles)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	require.NoError(t, err)

	_, err = f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestSignupRollsBackOnConsentFailure(t *testing.T) {
	f := newFixture()
	// Let the first two consent writes pass, fail the third.
	f.consents.failAt = 2

	_, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	require.Error(t, err)

	// No profile survives a partial consent trail.
	assert.Empty(t, f.users.profiles)
}

func TestLoginAndValidateToken(t *testing.T) {
	f := newFixture()
	profile, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	require.NoError(t, err)

	tokens, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Email:    "maria@example.com",
		Password: "s3nh4-muito-forte",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.EqualValues(t, 3600, tokens.ExpiresIn)

	claims, err := f.svc.ValidateToken(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, claims.UserID)
	assert.Equal(t, model.RolePatient, claims.Role)

	// Login is announced as a session change.
	require.NotEmpty(t, f.outbox.events)
	assert.Equal(t, model.EventSessionChanged, f.outbox.events[len(f.outbox.events)-1].EventType)

	// Last login is stamped.
	stored := f.users.profiles[profile.ID]
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{
		Email: "maria@example.com", Password: "wrong",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthenticated))

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{
		Email: "nobody@example.com", Password: "whatever",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthenticated))
}

func TestRefreshRoundTrip(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Signup(context.Background(), signupReq(), SignupMeta{})
	require.NoError(t, err)

	tokens, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Email: "maria@example.com", Password: "s3nh4-muito-forte",
	})
	require.NoError(t, err)

	fresh, err := f.svc.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	// An access token is not a refresh token.
	_, err = f.svc.Refresh(context.Background(), tokens.AccessToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthenticated))
}
