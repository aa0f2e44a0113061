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

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, profile *model.Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, role, password_hash, crm, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.Role,
		profile.PasswordHash,
		profile.CRM,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if mapped := mapRowError(err); mapped == repository.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	query := `SELECT * FROM profiles WHERE id = $1`
	var profile model.Profile
	if err := r.GetDB().GetContext(ctx, &profile, query, id); err != nil {
		return nil, mapRowError(err)
	}
	return &profile, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	query := `SELECT * FROM profiles WHERE lower(email) = lower($1)`
	var profile model.Profile
	if err := r.GetDB().GetContext(ctx, &profile, query, email); err != nil {
		return nil, mapRowError(err)
	}
	return &profile, nil
}

func (r *userRepository) FindByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	query := `SELECT * FROM profiles WHERE lower(email) = lower($1) AND role = $2`
	var profile model.Profile
	if err := r.GetDB().GetContext(ctx, &profile, query, email, role); err != nil {
		return nil, mapRowError(err)
	}
	return &profile, nil
}

func (r *userRepository) Update(ctx context.Context, profile *model.Profile) error {
	query := `
		UPDATE profiles
		SET email = $1, full_name = $2, crm = $3, last_login_at = $4, updated_at = $5
		WHERE id = $6
	`
	profile.UpdatedAt = time.Now()
	res, err := r.GetDB().ExecContext(ctx, query,
		profile.Email,
		profile.FullName,
		profile.CRM,
		profile.LastLoginAt,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}
