// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the pipeline needs to run. Fetch window and row
// limit are required knobs with conservative defaults: unbounded fetches
// against the source API are the dominant failure mode, so they are never
// optional conveniences.
type Config struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	SourceBaseURL string
	SourceTimeout time.Duration

	IngestWindow        time.Duration
	IngestRowLimit      int
	TransformBatchLimit int
	RunConcurrency      int
}

// FromEnv reads configuration from environment variables, applying defaults
// and validating the bounds the engines rely on.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("ENCORE_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaTopic:          envOr("KAFKA_AUDIT_TOPIC", "encore.runs"),
		SourceBaseURL:       envOr("SOURCE_BASE_URL", "https://elgoose.net/api/v2"),
		SourceTimeout:       30 * time.Second,
		IngestWindow:        14 * 24 * time.Hour,
		IngestRowLimit:      1000,
		TransformBatchLimit: 5000,
		RunConcurrency:      2,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.SourceTimeout, err = envDuration("SOURCE_TIMEOUT", cfg.SourceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.IngestWindow, err = envDuration("INGEST_WINDOW", cfg.IngestWindow); err != nil {
		return Config{}, err
	}
	if cfg.IngestRowLimit, err = envInt("INGEST_ROW_LIMIT", cfg.IngestRowLimit); err != nil {
		return Config{}, err
	}
	if cfg.TransformBatchLimit, err = envInt("TRANSFORM_BATCH_LIMIT", cfg.TransformBatchLimit); err != nil {
		return Config{}, err
	}
	if cfg.RunConcurrency, err = envInt("RUN_CONCURRENCY", cfg.RunConcurrency); err != nil {
		return Config{}, err
	}

	if cfg.IngestWindow <= 0 {
		return Config{}, fmt.Errorf("INGEST_WINDOW must be positive")
	}
	if cfg.IngestRowLimit <= 0 {
		return Config{}, fmt.Errorf("INGEST_ROW_LIMIT must be positive")
	}
	if cfg.RunConcurrency <= 0 {
		return Config{}, fmt.Errorf("RUN_CONCURRENCY must be positive")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
