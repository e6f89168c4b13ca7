package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "development",
		},
		GlobalPay: GlobalPayConfig{
			Timeout:   Duration{Duration: 30 * time.Second},
			RefPrefix: "TINGO",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		RateLimit: RateLimitConfig{
			// Generous limits that stop obvious spam without restricting
			// legitimate checkout traffic.
			GlobalEnabled: true,
			GlobalLimit:   1000,
			GlobalWindow:  Duration{Duration: 1 * time.Minute},
			PerIPEnabled:  true,
			PerIPLimit:    120,
			PerIPWindow:   Duration{Duration: 1 * time.Minute},
		},
		Events: EventsConfig{
			Topic: "transaction.status_changed",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			GlobalPay: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
		},
	}
}

func (c *Config) parseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// finalize validates the assembled configuration.
func (c *Config) finalize() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: server address is required")
	}
	if c.GlobalPay.BaseURL == "" {
		return fmt.Errorf("config: globalpay base_url is required")
	}
	if c.GlobalPay.RefPrefix == "" {
		c.GlobalPay.RefPrefix = "TINGO"
	}

	switch c.Storage.Backend {
	case "", "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("config: postgres backend requires postgres_url")
		}
	case "mongodb":
		if c.Storage.MongoDBURL == "" {
			return fmt.Errorf("config: mongodb backend requires mongodb_url")
		}
		if c.Storage.MongoDBDatabase == "" {
			c.Storage.MongoDBDatabase = "payment_gateway"
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("config: sqlite backend requires sqlite_path")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch len(c.Webhook.EncryptionKey) {
	case 16, 24, 32:
	case 0:
		return fmt.Errorf("config: webhook encryption_key is required")
	default:
		return fmt.Errorf("config: webhook encryption_key must be 16, 24, or 32 bytes, got %d", len(c.Webhook.EncryptionKey))
	}

	if c.Auth.Enabled && (c.Auth.Username == "" || c.Auth.Password == "") {
		return fmt.Errorf("config: auth requires username and password when enabled")
	}

	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("config: events requires at least one broker when enabled")
	}

	return nil
}
