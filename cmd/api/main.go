package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrenchline/wrenchline/cmd/mainconfig"
	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/api/router"
	"github.com/wrenchline/wrenchline/internal/app/bootstrap"
	"github.com/wrenchline/wrenchline/internal/booking"
	"github.com/wrenchline/wrenchline/internal/calendar"
	"github.com/wrenchline/wrenchline/internal/calllog"
	appconfig "github.com/wrenchline/wrenchline/internal/config"
	"github.com/wrenchline/wrenchline/internal/confirm"
	"github.com/wrenchline/wrenchline/internal/dialog"
	"github.com/wrenchline/wrenchline/internal/http/handlers"
	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/notify"
	"github.com/wrenchline/wrenchline/internal/observability/metrics"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wrenchline intake API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	tenants := bootstrap.BuildTenantStore(redisClient)
	if tenants == nil {
		logger.Error("redis is required for tenant config")
		os.Exit(1)
	}
	sessions := bootstrap.BuildSessionStore(redisClient, logger)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	confirmStore := bootstrap.BuildConfirmStore(awsCfg, cfg, logger)
	queue := bootstrap.BuildAlertQueue(awsCfg, cfg, logger)
	publisher := alerts.NewPublisher(queue, logger)

	smsSender := bootstrap.BuildSMSSender(cfg, logger)
	emailSender := bootstrap.BuildEmailSender(awsCfg, cfg, logger)
	notifier := notify.NewService(emailSender, smsSender, tenants, logger)

	// Memory mode has no separate worker binary; drain alerts in-process.
	if cfg.UseMemoryQueue && queue != nil {
		dispatcher := alerts.NewDispatcher(queue, notifier, logger, cfg.AlertWorkerCount, cfg.AlertReceiveWaitSecs)
		go dispatcher.Run(ctx)
	}
	if mem, ok := sessions.(*dialog.MemorySessionStore); ok {
		go mem.Run(ctx, time.Minute)
	}
	if mem, ok := confirmStore.(*confirm.MemoryStore); ok {
		go mem.Run(ctx, time.Minute)
	}

	var cal calendar.Service
	if client := bootstrap.BuildCalendarClient(cfg, logger); client != nil {
		cal = client
	} else {
		logger.Warn("calendar collaborator not configured, using in-memory calendar")
		cal = calendar.NewFake()
	}

	intakeMetrics := metrics.NewIntakeMetrics(prometheus.DefaultRegisterer)

	committer := booking.NewCommitter(cal, confirmStore, notifier, publisher, intakeMetrics, logger,
		booking.WithRetryPolicy(cfg.CalendarInsertRetries, cfg.CalendarRetryBaseWait))
	machine := dialog.NewMachine(sessions, cal, committer, publisher, intakeMetrics, logger)
	resolver := confirm.NewResolver(confirmStore, publisher, logger)

	var callStore *calllog.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		callStore = calllog.NewStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, call ledger disabled")
	}

	voiceCfg := handlers.VoiceTurnHandlerConfig{
		Tenants: tenants,
		Machine: machine,
		Metrics: intakeMetrics,
		Logger:  logger,
	}
	if callStore != nil {
		voiceCfg.CallLog = callStore
	}
	if cfg.VoiceWebhookSecret != "" {
		voiceCfg.Verifier = messaging.NewSignatureVerifier(cfg.VoiceWebhookSecret)
	}
	voiceHandler := handlers.NewVoiceTurnHandler(voiceCfg)

	smsCfg := handlers.SMSReplyHandlerConfig{
		Tenants:  tenants,
		Resolver: resolver,
		Metrics:  intakeMetrics,
		Logger:   logger,
	}
	if cfg.SMSWebhookSecret != "" {
		smsCfg.Verifier = messaging.NewSignatureVerifier(cfg.SMSWebhookSecret)
	}
	smsHandler := handlers.NewSMSReplyHandler(smsCfg)

	var adminHandler *handlers.AdminDashboardHandler
	if cfg.AdminJWTSecret != "" {
		adminHandler = handlers.NewAdminDashboardHandler(callStore, tenants, logger)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	r := router.New(&router.Config{
		Logger:               logger,
		VoiceTurn:            voiceHandler,
		SMSReply:             smsHandler,
		AdminDashboard:       adminHandler,
		AdminAuthSecret:      cfg.AdminJWTSecret,
		MetricsHandler:       promhttp.Handler(),
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		WebhookRatePerSecond: cfg.WebhookRatePerSecond,
		WebhookBurst:         cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
