package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	platformconfig "github.com/example/listening-companion/internal/platform/config"
)

// Config holds all configuration for the analytics consumer service.
type Config struct {
	LogLevel         string
	NATSURL          string
	PostHogAPIKey    string
	PostHogHost      string // e.g. https://app.posthog.com or self-hosted URL
	FlushInterval    time.Duration
	PostHogBatchSize int // PostHog SDK batch size before flush
	NATSBatchSize    int // NATS fetch batch size
	BatchIntervalMs  int // NATS fetch wait (ms)
}

// Load reads Config from environment variables, after applying any .env file.
// An empty NATSURL lets natsconn pick its own default.
func Load() (Config, error) {
	if err := platformconfig.LoadDotEnv(); err != nil {
		return Config{}, err
	}
	natsURL := strings.TrimSpace(os.Getenv("NATS_URL"))

	key := strings.TrimSpace(os.Getenv("POSTHOG_API_KEY"))
	if key == "" {
		return Config{}, errors.New("POSTHOG_API_KEY is required")
	}

	host := strings.TrimSpace(os.Getenv("POSTHOG_HOST"))
	if host == "" {
		host = "https://app.posthog.com"
	}

	logLevel := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	flushSec := positiveInt("POSTHOG_FLUSH_INTERVAL_SEC", 5)
	flushAt := positiveInt("POSTHOG_BATCH_SIZE", 100)
	batchSize := positiveInt("WORKER_BATCH_SIZE", 50)
	batchIntervalMs := positiveInt("WORKER_BATCH_INTERVAL_MS", 2000)

	return Config{
		LogLevel:         logLevel,
		NATSURL:          natsURL,
		PostHogAPIKey:    key,
		PostHogHost:      host,
		FlushInterval:    time.Duration(flushSec) * time.Second,
		PostHogBatchSize: flushAt,
		NATSBatchSize:    batchSize,
		BatchIntervalMs:  batchIntervalMs,
	}, nil
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
