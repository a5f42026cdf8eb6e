package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_PORT", "ALLOWED_ORIGINS", "DATABASE_URL", "DB_LOG_LEVEL",
		"JWT_SECRET", "SOURCES_FILE", "FETCH_TIMEOUT_SECONDS",
		"SLACK_BOT_TOKEN", "SLACK_CHANNEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort: got %d, want 3000", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "sqlite://alertdeck.db" {
		t.Errorf("DatabaseURL: got %q", cfg.DatabaseURL)
	}
	if cfg.DBLogLevel != "warn" {
		t.Errorf("DBLogLevel: got %q, want warn", cfg.DBLogLevel)
	}
	if cfg.AuthEnabled {
		t.Error("AuthEnabled: expected false without JWT_SECRET")
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout: got %v, want 15s", cfg.FetchTimeout)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins: got %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")
	t.Setenv("DATABASE_URL", "postgres://deck:pw@localhost/alertdeck")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 8088 {
		t.Errorf("HTTPPort: got %d, want 8088", cfg.HTTPPort)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins: got %v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d]: got %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
	if !cfg.AuthEnabled {
		t.Error("AuthEnabled: expected true with JWT_SECRET set")
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout: got %v, want 30s", cfg.FetchTimeout)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort: got %d, want default 3000", cfg.HTTPPort)
	}
}
