package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for chat-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Auth
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	Issuer    string `env:"ISSUER" envDefault:"parley"`

	// Assistant process
	AssistantCommand     string        `env:"ASSISTANT_COMMAND" envDefault:"assistant"`
	AssistantArgs        []string      `env:"ASSISTANT_ARGS" envSeparator:" "`
	ProcessIdleTimeout   time.Duration `env:"PROCESS_IDLE_TIMEOUT" envDefault:"10m"`
	ProcessStopGrace     time.Duration `env:"PROCESS_STOP_GRACE" envDefault:"5s"`
	StreamListenerBuffer int           `env:"STREAM_LISTENER_BUFFER" envDefault:"64"`

	// Rate limiting (sliding window)
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax        int           `env:"RATE_LIMIT_MAX" envDefault:"60"`
	SendRateLimitWindow time.Duration `env:"SEND_RATE_LIMIT_WINDOW" envDefault:"1m"`
	SendRateLimitMax    int           `env:"SEND_RATE_LIMIT_MAX" envDefault:"10"`

	// Duplicate-request detection
	DedupTTL        time.Duration `env:"DEDUP_TTL" envDefault:"5s"`
	DedupMaxEntries int           `env:"DEDUP_MAX_ENTRIES" envDefault:"10000"`

	// Session timeout guard
	SessionTimeoutDefault time.Duration `env:"SESSION_TIMEOUT_DEFAULT" envDefault:"30m"`
	SessionTimeoutMin     time.Duration `env:"SESSION_TIMEOUT_MIN" envDefault:"5m"`
	SessionTimeoutMax     time.Duration `env:"SESSION_TIMEOUT_MAX" envDefault:"24h"`

	// Audit logging
	AuditExcludePaths []string `env:"AUDIT_EXCLUDE_PATHS" envSeparator:"," envDefault:"/healthz,/readyz,/v1/session/status"`

	// Background sweepers
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// Observability / Logging
	ServiceName string `env:"SERVICE_NAME" envDefault:"chat-api"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if strings.TrimSpace(cfg.AssistantCommand) == "" {
		return nil, errors.New("ASSISTANT_COMMAND cannot be empty")
	}

	if cfg.RateLimitMax <= 0 || cfg.SendRateLimitMax <= 0 {
		return nil, errors.New("rate limit max must be positive")
	}
	if cfg.RateLimitWindow <= 0 || cfg.SendRateLimitWindow <= 0 {
		return nil, errors.New("rate limit window must be positive")
	}

	if cfg.DedupTTL <= 0 {
		return nil, errors.New("DEDUP_TTL must be positive")
	}
	if cfg.DedupMaxEntries <= 0 {
		return nil, errors.New("DEDUP_MAX_ENTRIES must be positive")
	}

	if cfg.SessionTimeoutMin <= 0 || cfg.SessionTimeoutMax < cfg.SessionTimeoutMin {
		return nil, errors.New("session timeout bounds are invalid")
	}
	if cfg.SessionTimeoutDefault < cfg.SessionTimeoutMin || cfg.SessionTimeoutDefault > cfg.SessionTimeoutMax {
		return nil, fmt.Errorf("SESSION_TIMEOUT_DEFAULT %s outside bounds [%s, %s]",
			cfg.SessionTimeoutDefault, cfg.SessionTimeoutMin, cfg.SessionTimeoutMax)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	for i, path := range cfg.AuditExcludePaths {
		cfg.AuditExcludePaths[i] = strings.TrimSpace(path)
	}

	return cfg, nil
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
