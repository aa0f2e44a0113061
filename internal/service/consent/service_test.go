package consent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

type fakeConsentRepo struct {
	records []*model.ConsentRecord
	failAll bool
}

func (r *fakeConsentRepo) Create(_ context.Context, record *model.ConsentRecord) error {
	if r.failAll {
		return assert.AnError
	}
	r.records = append(r.records, record)
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

func (r *fakeConsentRepo) Latest(_ context.Context, userID uuid.UUID, consentType model.ConsentType) (*model.ConsentRecord, error) {
	var latest *model.ConsentRecord
	for _, rec := range r.records {
		if rec.UserID != userID || rec.ConsentType != consentType {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func TestRecordSetsTimestamps(t *testing.T) {
	repo := &fakeConsentRepo{}
	svc := NewService(repo)
	userID := uuid.New()

	err := svc.Record(context.Background(), RecordParams{
		UserID:      userID,
		ConsentType: model.ConsentMarketing,
		Granted:     true,
		Version:     "1.0.0",
		IPAddress:   "10.0.0.1",
	})
	require.NoError(t, err)
	require.Len(t, repo.records, 1)

	rec := repo.records[0]
	assert.True(t, rec.Granted)
	assert.NotNil(t, rec.GrantedAt)
	assert.Nil(t, rec.RevokedAt)
	require.NotNil(t, rec.IPAddress)
	assert.Equal(t, "10.0.0.1", *rec.IPAddress)

	err = svc.Record(context.Background(), RecordParams{
		UserID:      userID,
		ConsentType: model.ConsentMarketing,
		Granted:     false,
		Version:     "1.0.0",
	})
	require.NoError(t, err)
	require.Len(t, repo.records, 2)

	rec = repo.records[1]
	assert.False(t, rec.Granted)
	assert.Nil(t, rec.GrantedAt)
	assert.NotNil(t, rec.RevokedAt)
}

func TestRecordRejectsUnknownType(t *testing.T) {
	svc := NewService(&fakeConsentRepo{})

	err := svc.Record(context.Background(), RecordParams{
		UserID:      uuid.New(),
		ConsentType: "newsletter",
		Granted:     true,
		Version:     "1.0.0",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	err = svc.Record(context.Background(), RecordParams{
		UserID:      uuid.New(),
		ConsentType: model.ConsentMarketing,
		Granted:     true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestCurrentConsentsLatestPerTypeWins(t *testing.T) {
	repo := &fakeConsentRepo{}
	svc := NewService(repo)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	repo.records = []*model.ConsentRecord{
		{ID: uuid.New(), UserID: userID, ConsentType: model.ConsentMarketing, Granted: true, CreatedAt: base},
		{ID: uuid.New(), UserID: userID, ConsentType: model.ConsentMarketing, Granted: false, CreatedAt: base.Add(10 * time.Minute)},
		{ID: uuid.New(), UserID: userID, ConsentType: model.ConsentDataSharing, Granted: true, CreatedAt: base},
		{ID: uuid.New(), UserID: uuid.New(), ConsentType: model.ConsentMarketing, Granted: true, CreatedAt: base.Add(time.Hour)},
	}

	current, err := svc.CurrentConsents(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.False(t, current[model.ConsentMarketing].Granted)
	assert.True(t, current[model.ConsentDataSharing].Granted)
}

func TestHasActiveConsent(t *testing.T) {
	repo := &fakeConsentRepo{}
	svc := NewService(repo)
	userID := uuid.New()

	// No record at all is not an error, just not active.
	active, err := svc.HasActiveConsent(context.Background(), userID, model.ConsentDataSharing)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, svc.Record(context.Background(), RecordParams{
		UserID: userID, ConsentType: model.ConsentDataSharing, Granted: true, Version: "1.0.0",
	}))
	active, err = svc.HasActiveConsent(context.Background(), userID, model.ConsentDataSharing)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRequiredConsentsSatisfied(t *testing.T) {
	repo := &fakeConsentRepo{}
	svc := NewService(repo)
	userID := uuid.New()

	ok, err := svc.RequiredConsentsSatisfied(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.RecordSignupConsents(context.Background(), userID, SignupConsents{
		TermsAccepted:          true,
		PrivacyAccepted:        true,
		DataProcessingAccepted: true,
	}))

	ok, err = svc.RequiredConsentsSatisfied(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Revoking one required consent flips the gate.
	require.NoError(t, svc.Record(context.Background(), RecordParams{
		UserID: userID, ConsentType: model.ConsentDataProcessing, Granted: false, Version: "1.0.0",
	}))
	// Make the revocation strictly newer than the grant.
	repo.records[len(repo.records)-1].CreatedAt = time.Now().Add(time.Minute)

	ok, err = svc.RequiredConsentsSatisfied(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordSignupConsentsFailsWhole(t *testing.T) {
	repo := &fakeConsentRepo{failAll: true}
	svc := NewService(repo)

	err := svc.RecordSignupConsents(context.Background(), uuid.New(), SignupConsents{
		TermsAccepted: true, PrivacyAccepted: true, DataProcessingAccepted: true,
	})
	assert.Error(t, err)
	assert.Empty(t, repo.records)
}
