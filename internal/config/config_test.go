package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(2500), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Anthropic.Temperature, 0.001)
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Places.BaseURL)
	assert.Equal(t, "https://serpapi.com", cfg.SerpAPI.BaseURL)
	assert.Equal(t, "https://api.resend.com", cfg.Email.BaseURL)
	assert.Equal(t, 10, cfg.RateLimit.MaxPerWindow)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 64, cfg.Worker.QueueSize)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: orchestrator.db
log:
  level: debug
  format: console
server:
  port: 9090
  base_url: https://app.harnessai.co
rate_limit:
  max_per_window: 5
worker:
  concurrency: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "orchestrator.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://app.harnessai.co", cfg.Server.BaseURL)
	assert.Equal(t, 5, cfg.RateLimit.MaxPerWindow)
	assert.Equal(t, 2, cfg.Worker.Concurrency)

	// Unset values still fall back to defaults.
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
