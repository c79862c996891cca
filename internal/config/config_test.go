package config

import (
	"os"
	"path/filepath"
	"testing"

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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "arbscout.db", cfg.Store.SQLitePath)
	assert.Equal(t, "https://api.keepa.com", cfg.Catalog.BaseURL)
	assert.Equal(t, 1, cfg.Catalog.Domain)
	assert.InDelta(t, 20, cfg.Catalog.RequestsPerMin, 0.001)
	assert.Equal(t, int64(300), cfg.Catalog.TokenBudget)
	assert.Equal(t, 6, cfg.Catalog.CacheTTLHours)
	assert.Equal(t, 30, cfg.Catalog.TimeoutSecs)
	assert.Equal(t, 3, cfg.Catalog.MaxRetries)
	assert.Equal(t, 5, cfg.Catalog.BreakerThreshold)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "en-US", cfg.Render.Locale)
	assert.Equal(t, "USD", cfg.Render.Currency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/arbscout
catalog:
  domain: 3
  requests_per_min: 10
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/arbscout", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Catalog.Domain)
	assert.InDelta(t, 10, cfg.Catalog.RequestsPerMin, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Unset knobs keep their defaults.
	assert.Equal(t, 5, cfg.Batch.MaxConcurrent)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ARBSCOUT_STORE_DRIVER", "memory")
	t.Setenv("ARBSCOUT_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
