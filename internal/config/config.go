package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	RegistryPath  string     // DOORMAN_REGISTRY (required; path to the doors TOML file)
	NATSURL       string     // DOORMAN_NATS_URL (default "nats://127.0.0.1:4222")
	SubjectPrefix string     // DOORMAN_SUBJECT_PREFIX (default "doors")
	HTTPAddr      string     // DOORMAN_HTTP_ADDR (default ":8089")
	AuthToken     string     // DOORMAN_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel      slog.Level // DOORMAN_LOG_LEVEL (default "info")

	// ReplyFollow is how long the CLI keeps following a command's reply
	// stream before giving up. DOORMAN_REPLY_FOLLOW (default 90s).
	ReplyFollow time.Duration
}

func Load() (*Config, error) {
	c := &Config{
		RegistryPath:  os.Getenv("DOORMAN_REGISTRY"),
		NATSURL:       envOrDefault("DOORMAN_NATS_URL", "nats://127.0.0.1:4222"),
		SubjectPrefix: envOrDefault("DOORMAN_SUBJECT_PREFIX", "doors"),
		HTTPAddr:      envOrDefault("DOORMAN_HTTP_ADDR", ":8089"),
		AuthToken:     os.Getenv("DOORMAN_AUTH_TOKEN"),
	}
	if c.RegistryPath == "" {
		return nil, fmt.Errorf("DOORMAN_REGISTRY is required")
	}
	if strings.ContainsAny(c.SubjectPrefix, " .*>") {
		return nil, fmt.Errorf("DOORMAN_SUBJECT_PREFIX: %q is not a valid subject token", c.SubjectPrefix)
	}

	level, err := parseLevel(envOrDefault("DOORMAN_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DOORMAN_LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	followStr := envOrDefault("DOORMAN_REPLY_FOLLOW", "90s")
	d, err := time.ParseDuration(followStr)
	if err != nil {
		return nil, fmt.Errorf("DOORMAN_REPLY_FOLLOW: %w", err)
	}
	c.ReplyFollow = d

	return c, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
