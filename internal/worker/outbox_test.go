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
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

var testMetrics = metrics.New("worker_test")

type fakeOutboxRepo struct {
	events map[uuid.UUID]*model.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{events: make(map[uuid.UUID]*model.OutboxEvent)}
}

func (r *fakeOutboxRepo) add(eventType string) *model.OutboxEvent {
	e := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	r.events[e.ID] = e
	return e
}

func (r *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.events[e.ID] = e
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if e.Status == model.OutboxStatusPending {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	e, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	e.ErrorMessage = errMsg
	return nil
}

type fakeBroker struct {
	published []string
	failTypes map[string]bool
}

func (b *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	if b.failTypes[channel] {
		return assert.AnError
	}
	b.published = append(b.published, channel)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func TestOutboxProcessorMarksProcessed(t *testing.T) {
	repo := newFakeOutboxRepo()
	broker := &fakeBroker{}
	invite := repo.add(model.EventInviteCreated)
	export := repo.add(model.EventDataExported)

	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)

	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, broker.published, 2)
	assert.Equal(t, model.OutboxStatusProcessed, repo.events[invite.ID].Status)
	assert.Equal(t, model.OutboxStatusProcessed, repo.events[export.ID].Status)

	// Processed events are not picked up again.
	broker.published = nil
	require.NoError(t, p.processEvents(context.Background()))
	assert.Empty(t, broker.published)
}

func TestOutboxProcessorMarksFailed(t *testing.T) {
	repo := newFakeOutboxRepo()
	broker := &fakeBroker{failTypes: map[string]bool{model.EventInviteCreated: true}}
	failing := repo.add(model.EventInviteCreated)
	passing := repo.add(model.EventConnectionAccepted)

	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)

	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, model.OutboxStatusFailed, repo.events[failing.ID].Status)
	require.NotNil(t, repo.events[failing.ID].ErrorMessage)
	assert.Equal(t, model.OutboxStatusProcessed, repo.events[passing.ID].Status)
}
