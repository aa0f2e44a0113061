package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/email"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

// DeletionWorker executes scheduled account erasures once their grace
// period has passed.
type DeletionWorker struct {
	deletions    repository.DeletionRepository
	users        repository.UserRepository
	email        email.Service
	logger       *logger.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	batchSize    int
}

func NewDeletionWorker(
	deletions repository.DeletionRepository,
	users repository.UserRepository,
	emailSvc email.Service,
	log *logger.Logger,
	m *metrics.Metrics,
	pollInterval time.Duration,
	batchSize int,
) *DeletionWorker {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DeletionWorker{
		deletions:    deletions,
		users:        users,
		email:        emailSvc,
		logger:       log,
		metrics:      m,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (w *DeletionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("starting deletion worker", "poll_interval", w.pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down deletion worker")
			return
		case <-ticker.C:
			if err := w.processDue(ctx); err != nil {
				w.logger.Error(err, "failed to process due deletions")
			}
		}
	}
}

func (w *DeletionWorker) processDue(ctx context.Context) error {
	due, err := w.deletions.ListDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		return fmt.Errorf("list due deletions: %w", err)
	}

	for _, req := range due {
		if err := w.processOne(ctx, req); err != nil {
			w.metrics.DeletionsProcessed.WithLabelValues("failed").Inc()
			w.logger.Error(err, "failed to erase account",
				"request_id", req.ID.String(),
				"user_id", req.UserID.String())
			continue
		}
		w.metrics.DeletionsProcessed.WithLabelValues("completed").Inc()
	}

	return nil
}

func (w *DeletionWorker) processOne(ctx context.Context, req *model.DeletionRequest) error {
	// Capture the address before the profile row disappears.
	var notifyAddr string
	if profile, err := w.users.Get(ctx, req.UserID); err == nil {
		notifyAddr = profile.Email
	}

	if err := w.deletions.UpdateStatus(ctx, req.ID, model.DeletionStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := w.deletions.Erase(ctx, req.UserID); err != nil {
		// Roll the status back so the next poll retries.
		if revertErr := w.deletions.UpdateStatus(ctx, req.ID, model.DeletionStatusPending); revertErr != nil {
			w.logger.Error(revertErr, "failed to revert deletion status", "request_id", req.ID.String())
		}
		return fmt.Errorf("erase user data: %w", err)
	}

	w.logger.Info("account erased",
		"request_id", req.ID.String(),
		"user_id", req.UserID.String())

	if notifyAddr != "" {
		if err := w.email.SendDeletionCompleted(ctx, notifyAddr); err != nil {
			w.logger.Error(err, "failed to send deletion notice", "request_id", req.ID.String())
		}
	}

	return nil
}
