// Package bootstrap wires shared infrastructure for the binaries. Builders
// are nil-tolerant: an unreachable optional backend degrades to the in-memory
// fallback instead of failing startup.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/calendar"
	appconfig "github.com/wrenchline/wrenchline/internal/config"
	"github.com/wrenchline/wrenchline/internal/confirm"
	"github.com/wrenchline/wrenchline/internal/dialog"
	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/notify"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore returns the Redis-backed call session store, or the
// in-memory store when Redis is unavailable. The memory fallback only works
// for a single process; sessions do not survive a restart.
func BuildSessionStore(redisClient *redis.Client, logger *logging.Logger) dialog.SessionStore {
	if redisClient != nil {
		return dialog.NewRedisSessionStore(redisClient)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Warn("using in-memory call sessions, not safe for multiple replicas")
	return dialog.NewMemorySessionStore()
}

// BuildTenantStore returns the tenant config store when Redis is available.
func BuildTenantStore(redisClient *redis.Client) *tenant.Store {
	if redisClient == nil {
		return nil
	}
	return tenant.NewStore(redisClient)
}

// BuildConfirmStore selects the pending-confirmation backend. Memory mode
// keeps everything in-process; otherwise DynamoDB is used.
func BuildConfirmStore(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) confirm.Store {
	if cfg == nil || cfg.UseMemoryQueue {
		return confirm.NewMemoryStore()
	}
	return confirm.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.ConfirmationsTable, logger)
}

// BuildAlertQueue selects the alert queue backend. Memory mode pairs with the
// in-process dispatcher; SQS requires a queue URL and returns nil without one
// so alert publishing turns into a no-op rather than an error.
func BuildAlertQueue(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) alerts.Queue {
	if cfg == nil {
		return nil
	}
	if cfg.UseMemoryQueue {
		return alerts.NewMemoryQueue(0)
	}
	if strings.TrimSpace(cfg.AlertQueueURL) == "" {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("alert queue url not set, owner alerts disabled")
		return nil
	}
	return alerts.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AlertQueueURL)
}

// BuildSMSSender returns the outbound SMS client, or the recording stub when
// no provider is configured so local runs still exercise the notify paths.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) messaging.Sender {
	if cfg != nil && strings.TrimSpace(cfg.SMSProviderBaseURL) != "" && strings.TrimSpace(cfg.SMSProviderAPIKey) != "" {
		return messaging.NewProviderClient(cfg.SMSProviderBaseURL, cfg.SMSProviderAPIKey, logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Warn("sms provider not configured, outbound texts are stubbed")
	return &messaging.StubSender{}
}

// BuildEmailSender picks the email backend from EMAIL_PROVIDER. Unknown or
// unconfigured providers fall back to the logging stub.
func BuildEmailSender(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "ses":
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger); sender != nil {
			return sender
		}
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	logger.Warn("email provider not configured, owner email is stubbed", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}

// BuildCalendarClient returns the calendar collaborator client, or nil when
// no base URL is configured. Callers substitute the in-memory fake for nil.
func BuildCalendarClient(cfg *appconfig.Config, logger *logging.Logger) *calendar.Client {
	if cfg == nil || strings.TrimSpace(cfg.CalendarBaseURL) == "" {
		return nil
	}
	return calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarAPIKey, logger,
		calendar.WithTimeout(cfg.CalendarTimeout))
}
