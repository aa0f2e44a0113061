package connection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

var testMetrics = metrics.New("connection_test")

type fakeConnectionRepo struct {
	conns map[uuid.UUID]*model.Connection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{conns: make(map[uuid.UUID]*model.Connection)}
}

func (r *fakeConnectionRepo) Create(_ context.Context, conn *model.Connection) error {
	for _, existing := range r.conns {
		if existing.DoctorID == conn.DoctorID && existing.PatientID == conn.PatientID {
			return repository.ErrDuplicate
		}
	}
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnectionRepo) Get(_ context.Context, id uuid.UUID) (*model.Connection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeConnectionRepo) GetByPair(_ context.Context, doctorID, patientID uuid.UUID) (*model.Connection, error) {
	for _, conn := range r.conns {
		if conn.DoctorID == doctorID && conn.PatientID == patientID {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeConnectionRepo) Accept(_ context.Context, id uuid.UUID, acceptedAt time.Time) error {
	conn, ok := r.conns[id]
	if !ok || conn.AcceptedAt != nil {
		return repository.ErrNotFound
	}
	conn.AcceptedAt = &acceptedAt
	return nil
}

func (r *fakeConnectionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.conns[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.conns, id)
	return nil
}

func (r *fakeConnectionRepo) ListActive(_ context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	var views []*model.ConnectionView
	for _, conn := range r.conns {
		if conn.Active() && conn.Involves(userID) {
			views = append(views, &model.ConnectionView{ID: conn.ID, InvitedAt: conn.InvitedAt, AcceptedAt: conn.AcceptedAt})
		}
	}
	return views, nil
}

func (r *fakeConnectionRepo) ListPending(_ context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	var views []*model.ConnectionView
	for _, conn := range r.conns {
		if conn.Pending() && conn.Involves(userID) {
			views = append(views, &model.ConnectionView{ID: conn.ID, InvitedAt: conn.InvitedAt})
		}
	}
	return views, nil
}

type fakeUserRepo struct {
	profiles map[uuid.UUID]*model.Profile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{profiles: make(map[uuid.UUID]*model.Profile)}
}

func (r *fakeUserRepo) add(email string, role model.Role) *model.Profile {
	p := &model.Profile{ID: uuid.New(), Email: email, Role: role, FullName: email}
	r.profiles[p.ID] = p
	return p
}

func (r *fakeUserRepo) Create(_ context.Context, profile *model.Profile) error {
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

type fakeAuditRepo struct {
	entries []*model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) ListByTarget(_ context.Context, targetUserID uuid.UUID, limit, offset int) ([]*model.AuditLog, error) {
	var out []*model.AuditLog
	for _, e := range r.entries {
		if e.TargetUserID == targetUserID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAuditRepo) CountByTarget(_ context.Context, targetUserID uuid.UUID) (int64, error) {
	logs, _ := r.ListByTarget(context.Background(), targetUserID, len(r.entries)+1, 0)
	return int64(len(logs)), nil
}

func (r *fakeAuditRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*model.AuditLog
	var removed int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.events = append(r.events, e)
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
	for _, e := range r.events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errMsg
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeEmail struct {
	inviteNotices []string
}

func (e *fakeEmail) SendInviteNotice(_ context.Context, to, _ string) error {
	e.inviteNotices = append(e.inviteNotices, to)
	return nil
}

func (e *fakeEmail) SendDeletionScheduled(_ context.Context, _ string, _ time.Time) error { return nil }
func (e *fakeEmail) SendDeletionCompleted(_ context.Context, _ string) error              { return nil }

type fixture struct {
	svc    *Service
	conns  *fakeConnectionRepo
	users  *fakeUserRepo
	audits *fakeAuditRepo
	outbox *fakeOutboxRepo
	mail   *fakeEmail
}

func newFixture() *fixture {
	conns := newFakeConnectionRepo()
	users := newFakeUserRepo()
	audits := &fakeAuditRepo{}
	outbox := &fakeOutboxRepo{}
	mail := &fakeEmail{}

	auditor := audit.NewLogger(audit.NewService(audits), logger.NewLogger(nil), testMetrics)
	events := event.NewService(outbox)

	return &fixture{
		svc:    NewService(conns, users, auditor, events, mail),
		conns:  conns,
		users:  users,
		audits: audits,
		outbox: outbox,
		mail:   mail,
	}
}

func TestDoctorInviteStartsPending(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, doctor.ID, conn.DoctorID)
	assert.Equal(t, patient.ID, conn.PatientID)
	assert.True(t, conn.Pending())
	assert.Nil(t, conn.AcceptedAt)

	// No share happened yet, so nothing to audit.
	assert.Empty(t, f.audits.entries)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventInviteCreated, f.outbox.events[0].EventType)

	// The invited patient gets a mail notice.
	assert.Equal(t, []string{patient.Email}, f.mail.inviteNotices)
}

func TestPatientInviteAutoAccepts(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), patient.ID, model.RolePatient, doctor.Email, RequestMeta{IPAddress: "10.0.0.9"})
	require.NoError(t, err)

	assert.True(t, conn.Active())
	require.NotNil(t, conn.AcceptedAt)

	// The immediate share is audited against the patient.
	require.Len(t, f.audits.entries, 1)
	entry := f.audits.entries[0]
	assert.Equal(t, model.AuditActionShare, entry.Action)
	assert.Equal(t, patient.ID, entry.TargetUserID)
	assert.Equal(t, "10.0.0.9", entry.IPAddress)

	// Auto-accepted shares need no invite notice.
	assert.Empty(t, f.mail.inviteNotices)
}

func TestInviteUnknownEmail(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)

	_, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, "nobody@example.com", RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestInviteSameRoleConflict(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	other := f.users.add("other@example.com", model.RoleDoctor)

	_, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, other.Email, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestInviteDuplicatePairConflict(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	_, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	// Same pair again, from either side.
	_, err = f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	_, err = f.svc.Invite(context.Background(), patient.ID, model.RolePatient, doctor.Email, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestAcceptInvite(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Accept(context.Background(), conn.ID, patient.ID, RequestMeta{}))

	stored, err := f.conns.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active())

	active, err := f.svc.HasActiveConnection(context.Background(), doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.True(t, active)

	// Accepting again conflicts.
	err = f.svc.Accept(context.Background(), conn.ID, patient.ID, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestAcceptByWrongUserForbidden(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)
	stranger := f.users.add("stranger@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	err = f.svc.Accept(context.Background(), conn.ID, stranger.ID, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	// The denial itself lands in the audit trail.
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, model.AuditActionAccessDenied, f.audits.entries[0].Action)
	assert.Equal(t, stranger.ID, f.audits.entries[0].UserID)
	assert.Equal(t, patient.ID, f.audits.entries[0].TargetUserID)
}

func TestRejectRemovesInvite(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Reject(context.Background(), conn.ID, patient.ID, RequestMeta{}))

	_, err = f.conns.Get(context.Background(), conn.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// A rejected pair can be invited again.
	_, err = f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	assert.NoError(t, err)
}

func TestCancelOnlyByInvitingDoctor(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), doctor.ID, model.RoleDoctor, patient.Email, RequestMeta{})
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), conn.ID, patient.ID, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	require.NoError(t, f.svc.Cancel(context.Background(), conn.ID, doctor.ID, RequestMeta{}))
	_, err = f.conns.Get(context.Background(), conn.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDisconnectEitherParty(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor@example.com", model.RoleDoctor)
	patient := f.users.add("patient@example.com", model.RolePatient)

	conn, err := f.svc.Invite(context.Background(), patient.ID, model.RolePatient, doctor.Email, RequestMeta{})
	require.NoError(t, err)
	require.True(t, conn.Active())

	stranger := f.users.add("stranger@example.com", model.RoleDoctor)
	err = f.svc.Disconnect(context.Background(), conn.ID, stranger.ID, RequestMeta{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	require.NoError(t, f.svc.Disconnect(context.Background(), conn.ID, doctor.ID, RequestMeta{}))

	active, err := f.svc.HasActiveConnection(context.Background(), doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.False(t, active)
}
