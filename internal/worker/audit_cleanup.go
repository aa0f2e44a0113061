package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
)

// AuditCleanupWorker prunes audit entries past the retention window.
type AuditCleanupWorker struct {
	audits          *audit.Service
	logger          *logger.Logger
	retentionDays   int
	cleanupInterval time.Duration
}

func NewAuditCleanupWorker(audits *audit.Service, log *logger.Logger, retentionDays int, cleanupInterval time.Duration) *AuditCleanupWorker {
	if cleanupInterval <= 0 {
		cleanupInterval = 24 * time.Hour
	}
	return &AuditCleanupWorker{
		audits:          audits,
		logger:          log,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.logger.Info("starting audit cleanup worker", "retention_days", w.retentionDays)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down audit cleanup worker")
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "failed to clean up audit logs")
			}
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.audits.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.logger.Info("cleaned up audit logs", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}
