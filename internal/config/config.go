// Package config reads server settings from the environment, after
// loading a .env file if there is one.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	HTTPAddr string

	// DatabaseURL selects Postgres persistence. Empty keeps games in memory.
	DatabaseURL string

	// NATSURL selects the NATS notification sink. Empty logs notifications
	// instead.
	NATSURL           string
	NATSSubjectPrefix string

	LogLevel  string
	LogFormat string // "json" or "console"

	RequestTimeout time.Duration
	LobbyTTL       time.Duration // 0 disables reaping
	ReapInterval   time.Duration

	NotifyBuffer  int
	NotifyRetries int

	// AllowedOrigins are websocket origin patterns, e.g. "localhost:*".
	AllowedOrigins []string
}

// Load reads .env (if present) and the environment. Every malformed value
// is reported, not just the first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs error
	cfg := Config{
		HTTPAddr:          str("HTTP_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: str("NATS_SUBJECT_PREFIX", "uno"),
		LogLevel:          str("LOG_LEVEL", "info"),
		LogFormat:         str("LOG_FORMAT", "json"),
		AllowedOrigins:    list("ALLOWED_ORIGINS"),
	}
	cfg.RequestTimeout = duration("REQUEST_TIMEOUT", 5*time.Second, &errs)
	cfg.LobbyTTL = duration("LOBBY_TTL", 30*time.Minute, &errs)
	cfg.ReapInterval = duration("REAP_INTERVAL", time.Minute, &errs)
	cfg.NotifyBuffer = integer("NOTIFY_BUFFER", 256, &errs)
	cfg.NotifyRetries = integer("NOTIFY_RETRIES", 3, &errs)

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = multierr.Append(errs, fmt.Errorf("LOG_FORMAT: want json or console, got %q", cfg.LogFormat))
	}
	if cfg.RequestTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("REQUEST_TIMEOUT: must be positive"))
	}
	if cfg.LobbyTTL < 0 {
		errs = multierr.Append(errs, errors.New("LOBBY_TTL: must not be negative"))
	}
	if cfg.ReapInterval <= 0 {
		errs = multierr.Append(errs, errors.New("REAP_INTERVAL: must be positive"))
	}
	if cfg.NotifyBuffer < 1 {
		errs = multierr.Append(errs, errors.New("NOTIFY_BUFFER: must be at least 1"))
	}
	if cfg.NotifyRetries < 0 {
		errs = multierr.Append(errs, errors.New("NOTIFY_RETRIES: must not be negative"))
	}
	if errs != nil {
		return Config{}, errs
	}
	return cfg, nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func duration(key string, def time.Duration, errs *error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func integer(key string, def int, errs *error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
