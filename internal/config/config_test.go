package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.EmbedBatchSize)
	assert.Equal(t, 64, cfg.StoreBatchSize)
	assert.Equal(t, 4, cfg.WindowWidth)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryInitialWait)
	assert.Equal(t, 60*time.Second, cfg.RetryMaxWait)
	assert.Equal(t, 120*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, []string{"pdf", "md", "html", "docx"}, cfg.AllowedFileTypes)
	assert.Equal(t, "gemini-embedding-001", cfg.EmbedModel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EMBED_BATCH_SIZE", "10")
	t.Setenv("WINDOW_WIDTH", "2")
	t.Setenv("ALLOWED_FILE_TYPES", "pdf,md")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.EmbedBatchSize)
	assert.Equal(t, 2, cfg.WindowWidth)
	assert.Equal(t, []string{"pdf", "md"}, cfg.AllowedFileTypes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.EmbedBatchSize = 0 }},
		{"zero store batch size", func(c *Config) { c.StoreBatchSize = 0 }},
		{"zero window width", func(c *Config) { c.WindowWidth = 0 }},
		{"negative embed concurrency", func(c *Config) { c.EmbedConcurrency = -1 }},
		{"zero store concurrency", func(c *Config) { c.StoreConcurrency = 0 }},
		{"zero retry attempts", func(c *Config) { c.RetryMaxAttempts = 0 }},
		{"empty allow list", func(c *Config) { c.AllowedFileTypes = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBUser: "u", DBPass: "p", DBName: "n"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.PostgresDSN())
}
