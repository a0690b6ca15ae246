package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Executor.MaxConcurrency)
	assert.Equal(t, 256, cfg.Executor.EventBuffer)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Empty(t, cfg.LLM.GeminiAPIKey)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TASKCORE_SERVER_PORT", "9090")
	t.Setenv("TASKCORE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("TASKCORE_EXECUTOR_MAX_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrency)
}

func TestLoad_ValidationFailures(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("TASKCORE_SERVER_LOG_LEVEL", "verbose")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("TASKCORE_SERVER_PORT", "70000")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("jwt secret too short", func(t *testing.T) {
		t.Setenv("TASKCORE_AUTH_JWT_SECRET", "short")

		_, err := Load()
		assert.Error(t, err)
	})
}
