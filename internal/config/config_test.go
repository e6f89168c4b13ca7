package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
globalpay:
  base_url: "https://api.globalpay.test/v1/"
webhook:
  encryption_key: "0123456789abcdef0123456789abcdef"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("default address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.GlobalPay.RefPrefix != "TINGO" {
		t.Errorf("default ref prefix = %q, want TINGO", cfg.GlobalPay.RefPrefix)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("default storage backend = %q, want memory", cfg.Storage.Backend)
	}
	if got := cfg.GlobalPay.Timeout.Duration; got != 30*time.Second {
		t.Errorf("default globalpay timeout = %v, want 30s", got)
	}
}

func TestLoadMissingProcessorURL(t *testing.T) {
	path := writeConfigFile(t, `
server:
  address: ":9090"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for missing globalpay base_url")
	}
}

func TestLoadDurationFormats(t *testing.T) {
	path := writeConfigFile(t, `
globalpay:
  base_url: "https://api.globalpay.test/v1/"
  timeout: 45s
webhook:
  encryption_key: "0123456789abcdef0123456789abcdef"
server:
  read_timeout: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GlobalPay.Timeout.Duration != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.GlobalPay.Timeout.Duration)
	}
	// Bare numbers are interpreted as seconds.
	if cfg.Server.ReadTimeout.Duration != 30*time.Second {
		t.Errorf("read_timeout = %v, want 30s", cfg.Server.ReadTimeout.Duration)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAYGATE_SERVER_ADDRESS", ":7070")
	t.Setenv("PAYGATE_GLOBALPAY_BASE_URL", "https://override.test/")
	t.Setenv("PAYGATE_EVENTS_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("PAYGATE_WEBHOOK_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("address = %q, want :7070", cfg.Server.Address)
	}
	if cfg.GlobalPay.BaseURL != "https://override.test/" {
		t.Errorf("base url = %q, want override", cfg.GlobalPay.BaseURL)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "broker2:9092" {
		t.Errorf("brokers = %v, want two trimmed entries", cfg.Events.Brokers)
	}
}

func TestInvalidEncryptionKeyLength(t *testing.T) {
	path := writeConfigFile(t, `
globalpay:
  base_url: "https://api.globalpay.test/v1/"
webhook:
  encryption_key: "tooshort"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for invalid encryption key length")
	}
}

func TestMissingEncryptionKey(t *testing.T) {
	path := writeConfigFile(t, `
globalpay:
  base_url: "https://api.globalpay.test/v1/"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for missing encryption key")
	}
}

func TestAuthRequiresCredentials(t *testing.T) {
	path := writeConfigFile(t, `
globalpay:
  base_url: "https://api.globalpay.test/v1/"
webhook:
  encryption_key: "0123456789abcdef0123456789abcdef"
auth:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for auth enabled without credentials")
	}
}
