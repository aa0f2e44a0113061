package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
)

type deletionRepository struct {
	BaseRepository
}

func NewDeletionRepository(base BaseRepository) repository.DeletionRepository {
	return &deletionRepository{base}
}

func (r *deletionRepository) Create(ctx context.Context, req *model.DeletionRequest) error {
	query := `
		INSERT INTO data_deletion_requests (
			id, user_id, reason, status, requested_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		req.ID,
		req.UserID,
		req.Reason,
		req.Status,
		req.RequestedAt,
		req.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("failed to create deletion request: %w", err)
	}
	return nil
}

func (r *deletionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.DeletionRequest, error) {
	query := `
		SELECT * FROM data_deletion_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
	`
	var requests []*model.DeletionRequest
	if err := r.GetDB().SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list deletion requests: %w", err)
	}
	return requests, nil
}

func (r *deletionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.DeletionRequest, error) {
	query := `
		SELECT * FROM data_deletion_requests
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
		LIMIT $3
	`
	var requests []*model.DeletionRequest
	if err := r.GetDB().SelectContext(ctx, &requests, query, model.DeletionStatusPending, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due deletion requests: %w", err)
	}
	return requests, nil
}

func (r *deletionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeletionStatus) error {
	query := `
		UPDATE data_deletion_requests
		SET status = $1, processed_at = CASE WHEN $1 IN ('completed', 'rejected') THEN now() ELSE processed_at END
		WHERE id = $2
	`
	res, err := r.GetDB().ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update deletion request: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Erase removes every row the subject owns in one transaction. Audit
// entries are kept so the erasure itself stays traceable.
func (r *deletionRepository) Erase(ctx context.Context, userID uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		statements := []string{
			`DELETE FROM questionnaires WHERE user_id = $1`,
			`DELETE FROM consent_records WHERE user_id = $1`,
			`DELETE FROM doctor_patient WHERE doctor_id = $1 OR patient_id = $1`,
			`DELETE FROM data_deletion_requests WHERE user_id = $1`,
			`DELETE FROM profiles WHERE id = $1`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
				return fmt.Errorf("failed to erase user data: %w", err)
			}
		}
		return nil
	})
}
