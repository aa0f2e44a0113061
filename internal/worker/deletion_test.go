package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
)

type fakeDeletionRepo struct {
	requests  map[uuid.UUID]*model.DeletionRequest
	erased    []uuid.UUID
	failErase bool
}

func newFakeDeletionRepo() *fakeDeletionRepo {
	return &fakeDeletionRepo{requests: make(map[uuid.UUID]*model.DeletionRequest)}
}

func (r *fakeDeletionRepo) addDue(userID uuid.UUID) *model.DeletionRequest {
	req := &model.DeletionRequest{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       model.DeletionStatusPending,
		RequestedAt:  time.Now().Add(-31 * 24 * time.Hour),
		ScheduledFor: time.Now().Add(-time.Hour),
	}
	r.requests[req.ID] = req
	return req
}

func (r *fakeDeletionRepo) Create(_ context.Context, req *model.DeletionRequest) error {
	r.requests[req.ID] = req
	return nil
}

func (r *fakeDeletionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.DeletionRequest, error) {
	var out []*model.DeletionRequest
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *fakeDeletionRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*model.DeletionRequest, error) {
	var out []*model.DeletionRequest
	for _, req := range r.requests {
		if req.Status == model.DeletionStatusPending && !req.ScheduledFor.After(now) {
			out = append(out, req)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeDeletionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.DeletionStatus) error {
	req, ok := r.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	req.Status = status
	return nil
}

func (r *fakeDeletionRepo) Erase(_ context.Context, userID uuid.UUID) error {
	if r.failErase {
		return assert.AnError
	}
	r.erased = append(r.erased, userID)
	for id, req := range r.requests {
		if req.UserID == userID {
			delete(r.requests, id)
		}
	}
	return nil
}

type fakeUserRepo struct {
	profiles map[uuid.UUID]*model.Profile
}

func (r *fakeUserRepo) Create(_ context.Context, p *model.Profile) error { return nil }

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, _ string) (*model.Profile, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByEmailAndRole(_ context.Context, _ string, _ model.Role) (*model.Profile, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, _ *model.Profile) error { return nil }
func (r *fakeUserRepo) Delete(_ context.Context, _ uuid.UUID) error      { return nil }

type fakeEmail struct {
	completed []string
}

func (e *fakeEmail) SendInviteNotice(_ context.Context, _, _ string) error { return nil }

func (e *fakeEmail) SendDeletionScheduled(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (e *fakeEmail) SendDeletionCompleted(_ context.Context, to string) error {
	e.completed = append(e.completed, to)
	return nil
}

func TestDeletionWorkerErasesDueRequests(t *testing.T) {
	repo := newFakeDeletionRepo()
	userID := uuid.New()
	repo.addDue(userID)

	users := &fakeUserRepo{profiles: map[uuid.UUID]*model.Profile{
		userID: {ID: userID, Email: "subject@example.com"},
	}}
	mail := &fakeEmail{}

	w := NewDeletionWorker(repo, users, mail, logger.NewLogger(nil), testMetrics, time.Hour, 10)
	require.NoError(t, w.processDue(context.Background()))

	assert.Equal(t, []uuid.UUID{userID}, repo.erased)
	assert.Empty(t, repo.requests)
	assert.Equal(t, []string{"subject@example.com"}, mail.completed)
}

func TestDeletionWorkerSkipsFutureRequests(t *testing.T) {
	repo := newFakeDeletionRepo()
	req := repo.addDue(uuid.New())
	req.ScheduledFor = time.Now().Add(24 * time.Hour)

	w := NewDeletionWorker(repo, &fakeUserRepo{}, &fakeEmail{}, logger.NewLogger(nil), testMetrics, time.Hour, 10)
	require.NoError(t, w.processDue(context.Background()))

	assert.Empty(t, repo.erased)
	assert.Equal(t, model.DeletionStatusPending, req.Status)
}

func TestDeletionWorkerRevertsOnEraseFailure(t *testing.T) {
	repo := newFakeDeletionRepo()
	repo.failErase = true
	req := repo.addDue(uuid.New())

	w := NewDeletionWorker(repo, &fakeUserRepo{}, &fakeEmail{}, logger.NewLogger(nil), testMetrics, time.Hour, 10)
	require.NoError(t, w.processDue(context.Background()))

	// The request returns to pending so the next poll retries it.
	assert.Equal(t, model.DeletionStatusPending, req.Status)
	assert.Empty(t, repo.erased)
}
