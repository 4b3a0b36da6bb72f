package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  user: cart
  password: secret
  database: campuscart
rabbitmq:
  user: guest
  password: guest
jwt:
  secret_key: test-key
  access_ttl_minutes: 30
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5432 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.HTTP.Port != 3000 || cfg.HTTP.MaxConcurrency != 256 {
		t.Errorf("http defaults = %+v", cfg.HTTP)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("redis port = %d", cfg.Redis.Port)
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("ttl = %s", cfg.AccessTTL())
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	path := writeConfig(t, `
database:
  user: cart
rabbitmq:
  user: guest
  password: guest
`)

	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("config without database password accepted")
	}
	if !strings.Contains(err.Error(), "database.password") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadGeneratesSecretWhenAbsent(t *testing.T) {
	path := writeConfig(t, `
database:
  user: cart
  password: secret
  database: campuscart
rabbitmq:
  user: guest
  password: guest
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JWT.SecretKey == "" {
		t.Error("no fallback secret generated")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
