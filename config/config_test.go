package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("CASEVALUE_DATABASE_URL", "postgres://localhost:5432/casevalue")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 8*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Engine.WeightsTTL)
	assert.Equal(t, 25, cfg.Engine.NeighborLimit)
	assert.InDelta(t, 0.3, cfg.Engine.PrimaryAlpha, 1e-9)
	assert.InDelta(t, 0.8, cfg.Engine.FallbackAlpha, 1e-9)
	assert.True(t, cfg.Engine.IncludeEarlyResolution)
	assert.False(t, cfg.Engine.IgnoreWeights)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CASEVALUE_DATABASE_URL", "postgres://db/casevalue")
	t.Setenv("CASEVALUE_SERVER_PORT", "9090")
	t.Setenv("CASEVALUE_ENGINE_IGNORE_WEIGHTS", "true")
	t.Setenv("CASEVALUE_ENGINE_NEIGHBOR_LIMIT", "40")
	t.Setenv("CASEVALUE_EMBEDDING_TIMEOUT", "3s")
	t.Setenv("CASEVALUE_EMBEDDING_PROVIDER", "openai")
	t.Setenv("CASEVALUE_EMBEDDING_API_KEY", "sk-test")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Engine.IgnoreWeights)
	assert.Equal(t, 40, cfg.Engine.NeighborLimit)
	assert.Equal(t, 3*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
}

func TestLoadFromEnv_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing database url",
			env:  map[string]string{},
		},
		{
			name: "unknown provider",
			env: map[string]string{
				"CASEVALUE_DATABASE_URL":       "postgres://db",
				"CASEVALUE_EMBEDDING_PROVIDER": "cohere",
			},
		},
		{
			name: "openai without key",
			env: map[string]string{
				"CASEVALUE_DATABASE_URL":       "postgres://db",
				"CASEVALUE_EMBEDDING_PROVIDER": "openai",
			},
		},
		{
			name: "s3 without bucket",
			env: map[string]string{
				"CASEVALUE_DATABASE_URL": "postgres://db",
				"CASEVALUE_STORAGE_TYPE": "s3",
			},
		},
		{
			name: "confidence threshold out of range",
			env: map[string]string{
				"CASEVALUE_DATABASE_URL":                "postgres://db",
				"CASEVALUE_ENGINE_NOVEL_MIN_CONFIDENCE": "120",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CASEVALUE_DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(LogConfig{Level: level})
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
