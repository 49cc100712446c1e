package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("WORKER_CONCURRENCY", "9")
	t.Setenv("GIN_MODE", "release")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 9, cfg.WorkerConcurrency)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("QUEUE_NAME", "jobs:test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "jobs:test", cfg.QueueName)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_name: from_file\nlog_level: DEBUG\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.DBName)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}
