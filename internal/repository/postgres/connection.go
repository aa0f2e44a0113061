package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
)

type connectionRepository struct {
	BaseRepository
}

func NewConnectionRepository(base BaseRepository) repository.ConnectionRepository {
	return &connectionRepository{base}
}

func (r *connectionRepository) Create(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO doctor_patient (id, doctor_id, patient_id, invited_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		conn.ID,
		conn.DoctorID,
		conn.PatientID,
		conn.InvitedAt,
		conn.AcceptedAt,
	)
	if err != nil {
		if mapped := mapRowError(err); mapped == repository.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	query := `SELECT * FROM doctor_patient WHERE id = $1`
	var conn model.Connection
	if err := r.GetDB().GetContext(ctx, &conn, query, id); err != nil {
		return nil, mapRowError(err)
	}
	return &conn, nil
}

func (r *connectionRepository) GetByPair(ctx context.Context, doctorID, patientID uuid.UUID) (*model.Connection, error) {
	query := `SELECT * FROM doctor_patient WHERE doctor_id = $1 AND patient_id = $2`
	var conn model.Connection
	if err := r.GetDB().GetContext(ctx, &conn, query, doctorID, patientID); err != nil {
		return nil, mapRowError(err)
	}
	return &conn, nil
}

func (r *connectionRepository) Accept(ctx context.Context, id uuid.UUID, acceptedAt time.Time) error {
	query := `UPDATE doctor_patient SET accepted_at = $1 WHERE id = $2 AND accepted_at IS NULL`
	res, err := r.GetDB().ExecContext(ctx, query, acceptedAt, id)
	if err != nil {
		return fmt.Errorf("failed to accept connection: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.GetDB().ExecContext(ctx, `DELETE FROM doctor_patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// connectionRow flattens the join with the counterpart profile.
type connectionRow struct {
	ID         uuid.UUID  `db:"id"`
	InvitedAt  time.Time  `db:"invited_at"`
	AcceptedAt *time.Time `db:"accepted_at"`
	CpID       uuid.UUID  `db:"cp_id"`
	CpEmail    string     `db:"cp_email"`
	CpFullName string     `db:"cp_full_name"`
	CpRole     model.Role `db:"cp_role"`
}

func (row *connectionRow) toView() *model.ConnectionView {
	return &model.ConnectionView{
		ID:         row.ID,
		InvitedAt:  row.InvitedAt,
		AcceptedAt: row.AcceptedAt,
		Counterpart: model.PublicProfile{
			ID:       row.CpID,
			Email:    row.CpEmail,
			FullName: row.CpFullName,
			Role:     row.CpRole,
		},
	}
}

func (r *connectionRepository) ListActive(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	query := fmt.Sprintf(`
		SELECT dp.id, dp.invited_at, dp.accepted_at,
		       p.id AS cp_id, p.email AS cp_email, p.full_name AS cp_full_name, p.role AS cp_role
		FROM doctor_patient dp
		JOIN profiles p ON p.id = dp.%s
		WHERE dp.%s = $1 AND dp.accepted_at IS NOT NULL
		ORDER BY dp.accepted_at DESC
	`, counterpartColumn(role), ownColumn(role))

	return r.listViews(ctx, query, userID)
}

func (r *connectionRepository) ListPending(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.ConnectionView, error) {
	query := fmt.Sprintf(`
		SELECT dp.id, dp.invited_at, dp.accepted_at,
		       p.id AS cp_id, p.email AS cp_email, p.full_name AS cp_full_name, p.role AS cp_role
		FROM doctor_patient dp
		JOIN profiles p ON p.id = dp.%s
		WHERE dp.%s = $1 AND dp.accepted_at IS NULL
		ORDER BY dp.invited_at DESC
	`, counterpartColumn(role), ownColumn(role))

	return r.listViews(ctx, query, userID)
}

func (r *connectionRepository) listViews(ctx context.Context, query string, userID uuid.UUID) ([]*model.ConnectionView, error) {
	var rows []*connectionRow
	if err := r.GetDB().SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	views := make([]*model.ConnectionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.toView())
	}
	return views, nil
}

func ownColumn(role model.Role) string {
	if role == model.RoleDoctor {
		return "doctor_id"
	}
	return "patient_id"
}

func counterpartColumn(role model.Role) string {
	if role == model.RoleDoctor {
		return "patient_id"
	}
	return "doctor_id"
}
