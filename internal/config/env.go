package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration. All env vars
// use the PAYGATE_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "PAYGATE_SERVER_ADDRESS")

	// Logging config
	setIfEnv(&c.Logging.Level, "PAYGATE_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "PAYGATE_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "PAYGATE_ENVIRONMENT")

	// GlobalPay config
	setIfEnv(&c.GlobalPay.BaseURL, "PAYGATE_GLOBALPAY_BASE_URL")
	setIfEnv(&c.GlobalPay.APIKey, "PAYGATE_GLOBALPAY_API_KEY")
	setIfEnv(&c.GlobalPay.RefPrefix, "PAYGATE_GLOBALPAY_REF_PREFIX")
	setDurationIfEnv(&c.GlobalPay.Timeout, "PAYGATE_GLOBALPAY_TIMEOUT")

	// Webhook decryption key
	setIfEnv(&c.Webhook.EncryptionKey, "PAYGATE_WEBHOOK_ENCRYPTION_KEY")

	// Storage config
	setIfEnv(&c.Storage.Backend, "PAYGATE_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "PAYGATE_POSTGRES_URL")
	setIfEnv(&c.Storage.MongoDBURL, "PAYGATE_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "PAYGATE_MONGODB_DATABASE")
	setIfEnv(&c.Storage.SQLitePath, "PAYGATE_SQLITE_PATH")

	// Basic auth
	setBoolIfEnv(&c.Auth.Enabled, "PAYGATE_AUTH_ENABLED")
	setIfEnv(&c.Auth.Username, "PAYGATE_AUTH_USERNAME")
	setIfEnv(&c.Auth.Password, "PAYGATE_AUTH_PASSWORD")

	// Rate limiting
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "PAYGATE_RATE_LIMIT_GLOBAL_ENABLED")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "PAYGATE_RATE_LIMIT_GLOBAL_LIMIT")
	setBoolIfEnv(&c.RateLimit.PerIPEnabled, "PAYGATE_RATE_LIMIT_PER_IP_ENABLED")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "PAYGATE_RATE_LIMIT_PER_IP_LIMIT")

	// Events
	setBoolIfEnv(&c.Events.Enabled, "PAYGATE_EVENTS_ENABLED")
	setIfEnv(&c.Events.Topic, "PAYGATE_EVENTS_TOPIC")
	if v := os.Getenv("PAYGATE_EVENTS_BROKERS"); v != "" {
		c.Events.Brokers = splitAndTrim(v)
	}

	// Circuit breaker
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "PAYGATE_CIRCUIT_BREAKER_ENABLED")
}

func setIfEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			target.Duration = parsed
		}
	}
}

func splitAndTrim(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
