// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration for the gateway.
type Config struct {
	LogLevel          string        // debug, info, warn, error
	ListenAddr        string        // Server listen address (e.g., ":8080")
	MetricsListenAddr string        // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string        // SQLite database path
	OriginBaseURL     string        // Required: base URL for the dataset origin
	OriginAccessKey   string        // Optional: access key sent to the origin
	JWTSecret         string        // Required: shared secret for credential verification
	SessionCookie     string        // Cookie name carrying the session credential
	AdminAPIKey       string        // Optional: master key for the admin API (bootstrap)
	CacheMaxAge       time.Duration // Stale-if-error window for cached datasets
	RedisAddr         string        // Optional: redis address for the durable cache tier
}

// Load parses configuration from environment variables.
// Optional fields have defaults suitable for local deployment.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          envOr("LOG_LEVEL", "info"),
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsListenAddr: envOr("METRICS_LISTEN_ADDR", "localhost:9090"),
		DatabasePath:      envOr("DATABASE_PATH", "/data/nexus.db"),
		OriginBaseURL:     os.Getenv("ORIGIN_BASE_URL"),
		OriginAccessKey:   os.Getenv("ORIGIN_ACCESS_KEY"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SessionCookie:     envOr("SESSION_COOKIE", "nexus_session"),
		AdminAPIKey:       os.Getenv("ADMIN_API_KEY"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		CacheMaxAge:       24 * time.Hour,
	}

	if v := os.Getenv("CACHE_MAX_AGE_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("CACHE_MAX_AGE_SECONDS must be a positive integer, got %q", v)
		}
		cfg.CacheMaxAge = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.OriginBaseURL == "" {
		return fmt.Errorf("ORIGIN_BASE_URL environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
