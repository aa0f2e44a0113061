package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/config"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/email"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/handler"
	authHandler "github.com/andreyrocca-psiq/qsm-h-app/internal/handler/auth"
	connectionHandler "github.com/andreyrocca-psiq/qsm-h-app/internal/handler/connection"
	lgpdHandler "github.com/andreyrocca-psiq/qsm-h-app/internal/handler/lgpd"
	questionnaireHandler "github.com/andreyrocca-psiq/qsm-h-app/internal/handler/questionnaire"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/middleware"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository/postgres"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/router"
	auditService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	authService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/auth"
	connectionService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	consentService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/consent"
	eventService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/event"
	insightService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/insight"
	lifecycleService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/lifecycle"
	questionnaireService "github.com/andreyrocca-psiq/qsm-h-app/internal/service/questionnaire"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/worker"
	jwtauth "github.com/andreyrocca-psiq/qsm-h-app/pkg/auth"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	redisbroker "github.com/andreyrocca-psiq/qsm-h-app/pkg/messaging/redis"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/security"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	if err := validator.RegisterCustom(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.New("qsmh")

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	consentRepo := postgres.NewConsentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	connectionRepo := postgres.NewConnectionRepository(base)
	questionnaireRepo := postgres.NewQuestionnaireRepository(base)
	deletionRepo := postgres.NewDeletionRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Services
	eventSvc := eventService.NewService(outboxRepo)
	auditSvc := auditService.NewService(auditRepo)
	auditor := auditService.NewLogger(auditSvc, appLogger, m)
	consentSvc := consentService.NewService(consentRepo)

	jwtSvc := jwtauth.NewJWTService(jwtauth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)

	emailSvc := email.NewSMTPService(cfg.Email)

	authSvc := authService.NewService(userRepo, consentSvc, jwtSvc, hasher, eventSvc, appLogger)
	connectionSvc := connectionService.NewService(connectionRepo, userRepo, auditor, eventSvc, emailSvc)
	questionnaireSvc := questionnaireService.NewService(
		questionnaireRepo,
		consentSvc,
		connectionSvc,
		auditor,
		questionnaireService.Policy{EnforceConsent: cfg.LGPD.EnforceConsentOnWrite},
	)
	insightSvc := insightService.NewService(questionnaireRepo, connectionSvc, auditor)
	lifecycleSvc := lifecycleService.NewService(
		userRepo,
		questionnaireRepo,
		consentRepo,
		deletionRepo,
		connectionSvc,
		auditSvc,
		auditor,
		eventSvc,
		m,
		emailSvc,
		lifecycleService.Config{GracePeriod: cfg.LGPD.GracePeriod()},
	)

	// Handlers
	h := handler.NewHandler()
	authH := authHandler.NewHandler(authSvc)
	connectionH := connectionHandler.NewHandler(connectionSvc)
	lgpdH := lgpdHandler.NewHandler(consentSvc, auditSvc, lifecycleSvc)
	questionnaireH := questionnaireHandler.NewHandler(questionnaireSvc, insightSvc)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		authMiddleware,
		authH,
		connectionH,
		lgpdH,
		questionnaireH,
		h,
		router.Config{
			RateLimitRPS:   float64(cfg.Server.RateLimit),
			RateLimitBurst: cfg.Server.RateBurst,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "qsmh_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// The API binary also drains the outbox so a single-process
	// deployment still publishes events.
	zl := appLogger.Zerolog()
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{}, appLogger, m)
	go outboxProcessor.Start(workerCtx)

	deletionWorker := worker.NewDeletionWorker(deletionRepo, userRepo, emailSvc, appLogger, m, time.Hour, 50)
	go deletionWorker.Start(workerCtx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
