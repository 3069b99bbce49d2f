package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string `validate:"required"`
	HTTPPort      string `validate:"required"`
	PostgresDSN   string
	DBPingTimeout time.Duration

	DenylistBaseURL     string
	DenylistCacheSizeMB int `validate:"min:0"`
	DenylistCacheTTL    time.Duration
	GeoBaseURL          string
	LookupTimeout       time.Duration

	GuardVelocityThreshold int `validate:"min:1"`
	GuardVelocityWindow    time.Duration
	GuardMinBotScore       float64 `validate:"min:0|max:1"`
	GuardFlagThreshold     float64 `validate:"min:0|max:1"`
	GuardSharingWindow     time.Duration

	OutboxBatchSize    int `validate:"min:1"`
	OutboxPollInterval time.Duration

	EnableOutboxRelay bool
	EnableSwagger     bool
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments inject the environment.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "crowdstage"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	cfg := Config{
		ServiceName:   service,
		HTTPPort:      port,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		DBPingTimeout: envDuration("DB_PING_TIMEOUT", 5*time.Second),

		DenylistBaseURL:     strings.TrimSpace(os.Getenv("DENYLIST_BASE_URL")),
		DenylistCacheSizeMB: envInt("DENYLIST_CACHE_SIZE_MB", 8),
		DenylistCacheTTL:    envDuration("DENYLIST_CACHE_TTL", time.Hour),
		GeoBaseURL:          strings.TrimSpace(os.Getenv("GEOIP_BASE_URL")),
		LookupTimeout:       envDuration("LOOKUP_TIMEOUT", 3*time.Second),

		GuardVelocityThreshold: envInt("GUARD_VELOCITY_THRESHOLD", 10),
		GuardVelocityWindow:    envDuration("GUARD_VELOCITY_WINDOW", time.Minute),
		GuardMinBotScore:       envFloat("GUARD_MIN_BOT_SCORE", 0.5),
		GuardFlagThreshold:     envFloat("GUARD_FLAG_THRESHOLD", 0.7),
		GuardSharingWindow:     envDuration("GUARD_SHARING_WINDOW", 24*time.Hour),

		OutboxBatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		EnableOutboxRelay: envBool("ENABLE_OUTBOX_RELAY", true),
		EnableSwagger:     envBool("ENABLE_SWAGGER", true),
	}

	v := validate.Struct(cfg)
	if !v.Validate() {
		return Config{}, fmt.Errorf("invalid configuration: %s", v.Errors.One())
	}
	return cfg, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
