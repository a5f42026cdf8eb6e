package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort       int
	AllowedOrigins []string

	// Database Configuration
	DatabaseURL string
	DBLogLevel  string

	// Authentication Configuration. When AuthEnabled is false every request
	// acts as the anonymous principal; tokens are issued externally.
	AuthEnabled bool
	JWTSecret   string

	// Source Polling Configuration
	SourcesFile  string
	FetchTimeout time.Duration

	// Slack Notifications
	SlackBotToken string
	SlackChannel  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsIntOrDefault("HTTP_PORT", 3000)
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "sqlite://alertdeck.db")
	cfg.DBLogLevel = getEnvOrDefault("DB_LOG_LEVEL", "warn")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AuthEnabled = cfg.JWTSecret != ""

	cfg.SourcesFile = os.Getenv("SOURCES_FILE")
	cfg.FetchTimeout = time.Duration(getEnvAsIntOrDefault("FETCH_TIMEOUT_SECONDS", 15)) * time.Second

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.SlackChannel = os.Getenv("SLACK_CHANNEL")

	return cfg, nil
}

// splitList parses a comma-separated env value into trimmed entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
