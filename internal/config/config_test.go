package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 4, cfg.Pipeline.WorkerConcurrency)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.ReviewTimeout)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, ReviewerStub, cfg.Reviewer.Mode)
	assert.Equal(t, "gemini-2.5-flash", cfg.Reviewer.Model)
	assert.Empty(t, cfg.Policy.Path)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestNewConfigFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("A11YSCOPE_REVIEWER_API_KEY", "secret-from-env")
	t.Setenv("A11YSCOPE_DATABASE_URL", "postgres://localhost/a11y")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Reviewer.APIKey)
	assert.Equal(t, "postgres://localhost/a11y", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Pipeline.WorkerConcurrency = 0 },
			wantErr: "worker_concurrency",
		},
		{
			name:    "negative top_k",
			mutate:  func(c *Config) { c.Retrieval.TopK = -1 },
			wantErr: "top_k",
		},
		{
			name:    "unknown reviewer mode",
			mutate:  func(c *Config) { c.Reviewer.Mode = "oracle" },
			wantErr: "reviewer.mode",
		},
		{
			name:    "live without api key",
			mutate:  func(c *Config) { c.Reviewer.Mode = ReviewerLive },
			wantErr: "api_key",
		},
		{
			name: "live without model",
			mutate: func(c *Config) {
				c.Reviewer.Mode = ReviewerLive
				c.Reviewer.APIKey = "k"
				c.Reviewer.Model = ""
			},
			wantErr: "model",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Reviewer.Temperature = 2.5 },
			wantErr: "temperature",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("live with key and model", func(t *testing.T) {
		cfg := valid()
		cfg.Reviewer.Mode = ReviewerLive
		cfg.Reviewer.APIKey = "k"
		require.NoError(t, cfg.Validate())
	})
}

func TestEnvKeyReplacer(t *testing.T) {
	assert.Equal(t, "reviewer_api_key", EnvKeyReplacer().Replace("reviewer.api_key"))
}
