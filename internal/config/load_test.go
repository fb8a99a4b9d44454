package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Queue.LeaseTimeout != 60*time.Second {
		t.Errorf("expected default lease timeout 60s, got %v", cfg.Queue.LeaseTimeout)
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Janitor.Retention != 168*time.Hour {
		t.Errorf("expected default retention 168h, got %v", cfg.Janitor.Retention)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIX_SERVER_PORT", "9090")
	t.Setenv("REDIX_SERVER_LOG_LEVEL", "debug")
	t.Setenv("REDIX_DATABASE_URL", "postgresql://u:p@db:5432/redix")
	t.Setenv("REDIX_QUEUE_NAME", "research")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090 from env, got %d", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Server.LogLevel)
	}
	if cfg.Database.URL != "postgresql://u:p@db:5432/redix" {
		t.Errorf("expected database url from env, got %s", cfg.Database.URL)
	}
	if cfg.Queue.Name != "research" {
		t.Errorf("expected queue name from env, got %s", cfg.Queue.Name)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("REDIX_SERVER_LOG_LEVEL", "loud")

	if _, err := Load(); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}
