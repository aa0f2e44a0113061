package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 500
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Entry describes one access or mutation of a data subject's personal
// data.
type Entry struct {
	Actor     uuid.UUID
	Target    uuid.UUID
	Action    model.AuditAction
	TableName string
	RecordID  *uuid.UUID
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

// Append writes one audit entry. Callers that must not fail on logging
// errors go through Logger instead.
func (s *Service) Append(ctx context.Context, e Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", e.Action)
	}

	var metadata json.RawMessage
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = raw
	}

	entry := &model.AuditLog{
		ID:           uuid.New(),
		UserID:       e.Actor,
		TargetUserID: e.Target,
		Action:       e.Action,
		TableName:    e.TableName,
		RecordID:     e.RecordID,
		Metadata:     metadata,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns entries about a data subject, newest first.
func (s *Service) Query(ctx context.Context, targetUserID uuid.UUID, limit, offset int) ([]*model.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.repo.ListByTarget(ctx, targetUserID, limit, offset)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return logs, nil
}

// ListAllForTarget pages through the full trail, used by the export
// path where truncation is not acceptable.
func (s *Service) ListAllForTarget(ctx context.Context, targetUserID uuid.UUID) ([]*model.AuditLog, error) {
	var all []*model.AuditLog
	for offset := 0; ; offset += MaxQueryLimit {
		page, err := s.repo.ListByTarget(ctx, targetUserID, MaxQueryLimit, offset)
		if err != nil {
			return nil, apperrors.Persistence(err)
		}
		all = append(all, page...)
		if len(page) < MaxQueryLimit {
			return all, nil
		}
	}
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteBefore(ctx, before)
}
