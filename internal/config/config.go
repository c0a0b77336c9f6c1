package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Webhook signing
	VoiceWebhookSecret string
	SMSWebhookSecret   string

	// Calendar collaborator
	CalendarBaseURL       string
	CalendarAPIKey        string
	CalendarTimeout       time.Duration
	CalendarInsertRetries int
	CalendarRetryBaseWait time.Duration

	// Redis (call sessions, tenant config)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Postgres (call outcome ledger)
	DatabaseURL string

	// AWS (pending confirmations, alert queue)
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	ConfirmationsTable   string
	AlertQueueURL        string
	UseMemoryQueue       bool
	AlertWorkerCount     int
	AlertReceiveWaitSecs int

	// SMS provider (outbound customer/owner texts)
	SMSProviderBaseURL string
	SMSProviderAPIKey  string

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// Admin API
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Webhook rate limiting, requests per second per IP. Zero disables.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		VoiceWebhookSecret: getEnv("VOICE_WEBHOOK_SECRET", ""),
		SMSWebhookSecret:   getEnv("SMS_WEBHOOK_SECRET", ""),

		CalendarBaseURL:       getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIKey:        getEnv("CALENDAR_API_KEY", ""),
		CalendarTimeout:       getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),
		CalendarInsertRetries: getEnvAsInt("CALENDAR_INSERT_RETRIES", 3),
		CalendarRetryBaseWait: getEnvAsDuration("CALENDAR_RETRY_BASE_WAIT", 500*time.Millisecond),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConfirmationsTable:   getEnv("CONFIRMATIONS_TABLE", "pending_confirmations"),
		AlertQueueURL:        getEnv("ALERT_QUEUE_URL", ""),
		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		AlertWorkerCount:     getEnvAsInt("ALERT_WORKER_COUNT", 2),
		AlertReceiveWaitSecs: getEnvAsInt("ALERT_RECEIVE_WAIT_SECS", 10),

		SMSProviderBaseURL: getEnv("SMS_PROVIDER_BASE_URL", ""),
		SMSProviderAPIKey:  getEnv("SMS_PROVIDER_API_KEY", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Wrenchline"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		WebhookRatePerSecond: getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 0),
		WebhookBurst:         getEnvAsInt("WEBHOOK_BURST", 20),
	}
}

// getEnvAsList splits a comma-separated environment variable.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
