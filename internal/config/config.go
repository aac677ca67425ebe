package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	GalleyAPIKey string

	// Unit state persistence
	StateDir string

	// Book profile (optional; defaults apply when unset)
	ProfilePath string

	// External rendering generator (optional; validate-only deployments
	// leave the URL empty)
	GeneratorURL       string
	GeneratorAPIKey    string
	GeneratorTimeout   time.Duration
	GeneratorMaxTokens int

	// Retry policy
	MaxRetries int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		GalleyAPIKey: os.Getenv("GALLEY_API_KEY"),

		StateDir:    envOr("STATE_DIR", "./state"),
		ProfilePath: os.Getenv("PROFILE_PATH"),

		GeneratorURL:       os.Getenv("GENERATOR_URL"),
		GeneratorAPIKey:    os.Getenv("GENERATOR_API_KEY"),
		GeneratorTimeout:   envDuration("GENERATOR_TIMEOUT", 120*time.Second),
		GeneratorMaxTokens: envInt("GENERATOR_MAX_TOKENS", 32000),

		MaxRetries: envInt("MAX_RETRIES", 3),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = 120 * time.Second
	}
	if cfg.GeneratorMaxTokens <= 0 {
		cfg.GeneratorMaxTokens = 32000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.GalleyAPIKey == "" {
		return fmt.Errorf("GALLEY_API_KEY is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("STATE_DIR is required")
	}
	if c.GeneratorURL != "" && c.GeneratorAPIKey == "" {
		return fmt.Errorf("GENERATOR_API_KEY is required when GENERATOR_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
