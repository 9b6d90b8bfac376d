package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	cfg := &Config{}
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Postgres.Database = "finserv"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := baseConfig()
	applyDefaults(cfg)

	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, 3000, cfg.Queue.BaseDelayMS)
	assert.Equal(t, 2, cfg.Queue.Multiplier)
	assert.Equal(t, 4, cfg.Workers.Notification.Concurrency)
	assert.Equal(t, 30000, cfg.Workers.Notification.TimeoutMS)
	assert.Equal(t, 2, cfg.Workers.Export.Concurrency)
	assert.Equal(t, "00:30", cfg.Workers.Aggregate.RunAt)
	assert.Equal(t, 86400, cfg.Storage.PresignTTLSeconds)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := baseConfig()
		applyDefaults(cfg)
		assert.NoError(t, validateConfig(cfg))
	})

	t.Run("missing postgres host", func(t *testing.T) {
		cfg := baseConfig()
		applyDefaults(cfg)
		cfg.Database.Postgres.Host = ""
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("export worker needs a bucket", func(t *testing.T) {
		cfg := baseConfig()
		applyDefaults(cfg)
		cfg.Workers.Export.Enabled = true
		cfg.Storage.Bucket = ""
		err := validateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		Database: "finserv", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=finserv sslmode=disable",
		p.GetDSN())
}
