package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wrenchline/wrenchline/cmd/mainconfig"
	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/app/bootstrap"
	appconfig "github.com/wrenchline/wrenchline/internal/config"
	"github.com/wrenchline/wrenchline/internal/notify"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting alert worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.UseMemoryQueue {
		logger.Error("memory mode drains alerts inside the API process, worker not needed")
		os.Exit(1)
	}
	if cfg.AlertQueueURL == "" {
		logger.Error("alert worker requires ALERT_QUEUE_URL")
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	tenants := bootstrap.BuildTenantStore(redisClient)
	if tenants == nil {
		logger.Error("redis is required for tenant config")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := bootstrap.BuildAlertQueue(awsCfg, cfg, logger)
	smsSender := bootstrap.BuildSMSSender(cfg, logger)
	emailSender := bootstrap.BuildEmailSender(awsCfg, cfg, logger)
	notifier := notify.NewService(emailSender, smsSender, tenants, logger)

	dispatcher := alerts.NewDispatcher(queue, notifier, logger, cfg.AlertWorkerCount, cfg.AlertReceiveWaitSecs)

	logger.Info("alert worker running",
		"workers", cfg.AlertWorkerCount,
		"queue_url", cfg.AlertQueueURL,
	)
	dispatcher.Run(ctx)

	logger.Info("alert worker stopped")
}
