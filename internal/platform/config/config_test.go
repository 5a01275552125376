package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) clearEnv() {
	for _, key := range []string{
		"ENCORE_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC",
		"SOURCE_BASE_URL", "SOURCE_TIMEOUT", "INGEST_WINDOW", "INGEST_ROW_LIMIT",
		"TRANSFORM_BATCH_LIMIT", "RUN_CONCURRENCY",
	} {
		s.T().Setenv(key, "")
	}
}

func (s *ConfigSuite) TestDefaults() {
	s.clearEnv()

	cfg, err := FromEnv()
	s.Require().NoError(err)
	s.Equal(":8080", cfg.Addr)
	s.Equal("https://elgoose.net/api/v2", cfg.SourceBaseURL)
	s.Equal(14*24*time.Hour, cfg.IngestWindow)
	s.Equal(1000, cfg.IngestRowLimit)
	s.Equal(5000, cfg.TransformBatchLimit)
	s.Equal(2, cfg.RunConcurrency)
	s.Empty(cfg.KafkaBrokers)
}

func (s *ConfigSuite) TestOverrides() {
	s.clearEnv()
	s.T().Setenv("ENCORE_ADDR", ":9090")
	s.T().Setenv("INGEST_WINDOW", "72h")
	s.T().Setenv("INGEST_ROW_LIMIT", "250")
	s.T().Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")

	cfg, err := FromEnv()
	s.Require().NoError(err)
	s.Equal(":9090", cfg.Addr)
	s.Equal(72*time.Hour, cfg.IngestWindow)
	s.Equal(250, cfg.IngestRowLimit)
	s.Equal([]string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func (s *ConfigSuite) TestValidation() {
	s.Run("non-numeric row limit", func() {
		s.clearEnv()
		s.T().Setenv("INGEST_ROW_LIMIT", "lots")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("non-positive window", func() {
		s.clearEnv()
		s.T().Setenv("INGEST_WINDOW", "-24h")
		_, err := FromEnv()
		s.Error(err)
		s.Contains(err.Error(), "INGEST_WINDOW")
	})

	s.Run("non-positive concurrency", func() {
		s.clearEnv()
		s.T().Setenv("RUN_CONCURRENCY", "0")
		_, err := FromEnv()
		s.Error(err)
		s.Contains(err.Error(), "RUN_CONCURRENCY")
	})

	s.Run("malformed timeout", func() {
		s.clearEnv()
		s.T().Setenv("SOURCE_TIMEOUT", "thirty seconds")
		_, err := FromEnv()
		s.Error(err)
	})
}
