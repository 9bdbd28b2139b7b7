// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const minAdminTokenLen = 16

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Profiles
	ProfilesFile    string
	DefaultEndpoint string // prefilled in the new profile form

	// Session cookie key, 32 bytes. Empty means an ephemeral key.
	SessionKey string

	// AdminToken unlocks the UI for remote operators. Empty means only
	// loopback clients are served.
	AdminToken string

	// Uploads and sharing
	MaxUploadSize   int64
	ShareLinkMaxTTL time.Duration

	MetricsEnabled bool

	// LocalStorageRoot confines "local" profiles to this directory tree.
	// Empty disables local profiles.
	LocalStorageRoot string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", "127.0.0.1:8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		ProfilesFile:     envOr("PROFILES_FILE", "data/profiles.yaml"),
		DefaultEndpoint:  envOr("MINIO_ENDPOINT", "play.min.io:9000"),
		SessionKey:       os.Getenv("IRON_SESSION_KEY"),
		AdminToken:       os.Getenv("IRON_ADMIN_TOKEN"),
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
		ShareLinkMaxTTL:  envDuration("SHARE_LINK_MAX_TTL", 7*24*time.Hour),
		MetricsEnabled:   envBool("METRICS_ENABLED", true),
		LocalStorageRoot: envOr("LOCAL_STORAGE_ROOT", ""),
	}

	if cfg.SessionKey != "" && len(cfg.SessionKey) != 32 {
		return nil, fmt.Errorf("IRON_SESSION_KEY must be exactly 32 bytes, got %d", len(cfg.SessionKey))
	}
	if cfg.AdminToken != "" && len(cfg.AdminToken) < minAdminTokenLen {
		return nil, fmt.Errorf("IRON_ADMIN_TOKEN must be at least %d characters", minAdminTokenLen)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if cfg.ShareLinkMaxTTL <= 0 {
		return nil, fmt.Errorf("SHARE_LINK_MAX_TTL must be positive")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
