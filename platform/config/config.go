// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the shared Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides SMTP settings for the email notification channel.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway channel.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSDefaultRegion() string
	IsSMSEnabled() bool
}

// WebhookConfig provides settings for outbound webhook and Slack delivery.
type WebhookConfig interface {
	GetWebhookSigningSecret() string
	GetWebhookTimeout() time.Duration
}

// SpeedToLeadConfig provides runtime settings for the speed-to-lead core.
type SpeedToLeadConfig interface {
	GetSpeedToLeadDefaultsFile() string
	GetSpeedToLeadConfigCacheTTL() time.Duration
	GetOutboxPollInterval() time.Duration
	GetOutboxBatchSize() int
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// Config holds all application configuration.
// It implements all module-specific config interfaces.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	MigrationsEnabled     bool
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	AppBaseURL            string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	SMSGatewayURL         string
	SMSGatewayKey         string
	SMSDefaultRegion      string
	WebhookSigningSecret  string
	WebhookTimeout        time.Duration
	SpeedToLeadDefaults   string
	ConfigCacheTTL        time.Duration
	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxStaleAfter      time.Duration
	IngestRateLimitPerMin int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string    { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string    { return c.SMSGatewayKey }
func (c *Config) GetSMSDefaultRegion() string { return c.SMSDefaultRegion }
func (c *Config) IsSMSEnabled() bool          { return c.SMSGatewayURL != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookSigningSecret() string  { return c.WebhookSigningSecret }
func (c *Config) GetWebhookTimeout() time.Duration { return c.WebhookTimeout }

// SpeedToLeadConfig implementation
func (c *Config) GetSpeedToLeadDefaultsFile() string          { return c.SpeedToLeadDefaults }
func (c *Config) GetSpeedToLeadConfigCacheTTL() time.Duration { return c.ConfigCacheTTL }
func (c *Config) GetOutboxPollInterval() time.Duration        { return c.OutboxPollInterval }
func (c *Config) GetOutboxBatchSize() int                     { return c.OutboxBatchSize }
func (c *Config) GetOutboxStaleAfter() time.Duration          { return c.OutboxStaleAfter }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MigrationsEnabled:     strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailEnabled:          emailEnabled && smtpHost != "",
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "OrenGen"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSGatewayURL:         getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:         getEnv("SMS_GATEWAY_KEY", ""),
		SMSDefaultRegion:      getEnv("SMS_DEFAULT_REGION", "US"),
		WebhookSigningSecret:  getEnv("WEBHOOK_SIGNING_SECRET", ""),
		WebhookTimeout:        mustDuration(getEnv("WEBHOOK_TIMEOUT", "10s")),
		SpeedToLeadDefaults:   getEnv("SPEED_TO_LEAD_DEFAULTS_FILE", ""),
		ConfigCacheTTL:        mustDuration(getEnv("SPEED_TO_LEAD_CONFIG_CACHE_TTL", "30s")),
		OutboxPollInterval:    mustDuration(getEnv("OUTBOX_POLL_INTERVAL", "2s")),
		OutboxBatchSize:       mustInt(getEnv("OUTBOX_BATCH_SIZE", "50")),
		OutboxStaleAfter:      mustDuration(getEnv("OUTBOX_STALE_AFTER", "15m")),
		IngestRateLimitPerMin: mustInt(getEnv("INGEST_RATE_LIMIT_PER_MIN", "120")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
