package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 6*time.Second, cfg.Queue.Delay)
	assert.Equal(t, 10, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 1.5, cfg.Retry.Factor)
	assert.Equal(t, []string{"GEMINI_API_KEY", "API_KEY"}, cfg.Credentials.EnvVars)
	assert.Equal(t, "stockbuzz.db", filepath.Base(cfg.DBPath))
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GEMINI_URL", "http://localhost:9999")

	path := writeConfig(t, `
db_path: "test.db"
model: gemini-2.5-pro
cache:
  ttl: 30s
queue:
  delay: 2s
retry:
  max_attempts: 3
  base_delay: 1s
  factor: 2
budget:
  enabled: true
  policies:
    - model: "*"
      max_requests: 100
      period: daily
router:
  routes:
    - feature: chat
      temperature: 0.9
credentials:
  gemini_base_url: ${TEST_GEMINI_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.DBPath)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Second, cfg.Queue.Delay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Factor)
	assert.True(t, cfg.Budget.Enabled)
	require.Len(t, cfg.Budget.Policies, 1)
	assert.Equal(t, int64(100), cfg.Budget.Policies[0].MaxRequests)
	assert.Equal(t, models.BudgetDaily, cfg.Budget.Policies[0].Period)
	require.Len(t, cfg.Router.Routes, 1)
	require.NotNil(t, cfg.Router.Routes[0].Temperature)
	assert.InDelta(t, 0.9, *cfg.Router.Routes[0].Temperature, 1e-6)
	assert.Equal(t, "http://localhost:9999", cfg.Credentials.GeminiBaseURL)
	// untouched sections keep their defaults
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)

	cfg, err := LoadOrDefault("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "budget:\n  policies:\n    - period: weekly\n"))
	assert.ErrorContains(t, err, "unknown period")

	_, err = Load(writeConfig(t, "cache:\n  ttl: -1s\n"))
	assert.ErrorContains(t, err, "cache.ttl")

	_, err = Load(writeConfig(t, "router:\n  routes:\n    - model: x\n"))
	assert.ErrorContains(t, err, "feature is required")
}

func TestEnsureDBDir(t *testing.T) {
	cfg := Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "dir", "x.db")
	require.NoError(t, cfg.EnsureDBDir())
	_, err := os.Stat(filepath.Dir(cfg.DBPath))
	assert.NoError(t, err)
}
