package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, target_user_id, action, table_name,
			record_id, metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.TargetUserID,
		entry.Action,
		entry.TableName,
		entry.RecordID,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByTarget(ctx context.Context, targetUserID uuid.UUID, limit, offset int) ([]*model.AuditLog, error) {
	query := `
		SELECT * FROM audit_logs
		WHERE target_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var logs []*model.AuditLog
	if err := r.GetDB().SelectContext(ctx, &logs, query, targetUserID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) CountByTarget(ctx context.Context, targetUserID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COUNT(*) FROM audit_logs WHERE target_user_id = $1`
	if err := r.GetDB().GetContext(ctx, &total, query, targetUserID); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return total, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
