package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
)

type questionnaireRepository struct {
	BaseRepository
}

func NewQuestionnaireRepository(base BaseRepository) repository.QuestionnaireRepository {
	return &questionnaireRepository{base}
}

func (r *questionnaireRepository) Create(ctx context.Context, q *model.Questionnaire) error {
	query := `
		INSERT INTO questionnaires (
			id, user_id, depressive_score, activation_score, answers, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}

	_, err := r.GetDB().ExecContext(ctx, query,
		q.ID,
		q.UserID,
		q.DepressiveScore,
		q.ActivationScore,
		q.Answers,
		q.CompletedAt,
		q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create questionnaire: %w", err)
	}
	return nil
}

func (r *questionnaireRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Questionnaire, error) {
	query := `
		SELECT * FROM questionnaires
		WHERE user_id = $1
		ORDER BY completed_at DESC
	`
	var items []*model.Questionnaire
	if err := r.GetDB().SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list questionnaires: %w", err)
	}
	return items, nil
}
