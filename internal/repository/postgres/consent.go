package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
)

type consentRepository struct {
	BaseRepository
}

func NewConsentRepository(base BaseRepository) repository.ConsentRepository {
	return &consentRepository{base}
}

func (r *consentRepository) Create(ctx context.Context, record *model.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (
			id, user_id, consent_type, granted, version,
			ip_address, user_agent, granted_at, revoked_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.GetDB().ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.ConsentType,
		record.Granted,
		record.Version,
		record.IPAddress,
		record.UserAgent,
		record.GrantedAt,
		record.RevokedAt,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consent record: %w", err)
	}
	return nil
}

func (r *consentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.ConsentRecord, error) {
	query := `
		SELECT * FROM consent_records
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var records []*model.ConsentRecord
	if err := r.GetDB().SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list consent records: %w", err)
	}
	return records, nil
}

func (r *consentRepository) Latest(ctx context.Context, userID uuid.UUID, consentType model.ConsentType) (*model.ConsentRecord, error) {
	query := `
		SELECT * FROM consent_records
		WHERE user_id = $1 AND consent_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var record model.ConsentRecord
	if err := r.GetDB().GetContext(ctx, &record, query, userID, consentType); err != nil {
		return nil, mapRowError(err)
	}
	return &record, nil
}
