package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/config"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/email"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository/postgres"
	auditService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/worker"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	redisbroker "github.com/andreyrocca-psiq/qsm-h-app/pkg/messaging/redis"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

// workerConfig is read from the environment: the worker binary runs in
// containers where a config file is not mounted.
type workerConfig struct {
	DatabaseURL        string        `envconfig:"DATABASE_URL" required:"true"`
	RedisURL           string        `envconfig:"REDIS_URL" required:"true"`
	HealthPort         string        `envconfig:"HEALTH_PORT" default:"8081"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	DeletionInterval   time.Duration `envconfig:"DELETION_POLL_INTERVAL" default:"1h"`
	DeletionBatchSize  int           `envconfig:"DELETION_BATCH_SIZE" default:"50"`
	AuditRetentionDays int           `envconfig:"AUDIT_RETENTION_DAYS" default:"1825"`
	AuditCleanupEvery  time.Duration `envconfig:"AUDIT_CLEANUP_INTERVAL" default:"24h"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	EmailFrom    string `envconfig:"EMAIL_FROM"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("qsmh", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.RedisURL}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.New("qsmh_worker")

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	deletionRepo := postgres.NewDeletionRepository(base)
	userRepo := postgres.NewUserRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	auditSvc := auditService.NewService(auditRepo)
	emailSvc := email.NewSMTPService(config.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
	}, appLogger, m)

	deletionWorker := worker.NewDeletionWorker(
		deletionRepo,
		userRepo,
		emailSvc,
		appLogger,
		m,
		cfg.DeletionInterval,
		cfg.DeletionBatchSize,
	)

	auditCleanup := worker.NewAuditCleanupWorker(auditSvc, appLogger, cfg.AuditRetentionDays, cfg.AuditCleanupEvery)

	setupHealthCheck(appLogger, cfg.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down workers")
		cancel()
	}()

	go deletionWorker.Start(ctx)
	go auditCleanup.Start(ctx)
	outboxProcessor.Start(ctx)
}

func setupHealthCheck(log *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}
