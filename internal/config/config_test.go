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

	assert.Equal(t, "sqlite", cfg.Gazetteer.Driver)
	assert.Equal(t, "gazetteer.db", cfg.Gazetteer.SQLitePath)
	assert.Equal(t, "parse-cache.db", cfg.Cache.Path)
	assert.Equal(t, 200000, cfg.Cache.MaxEntries)
	assert.True(t, cfg.PLSS.Enabled)
	assert.InDelta(t, 5.0, cfg.PLSS.RPS, 0.001)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
gazetteer:
  driver: postgres
  database_url: postgres://localhost/gazetteer
resolver:
  max_dist_km: 250
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  concurrency: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Gazetteer.Driver)
	assert.Equal(t, "postgres://localhost/gazetteer", cfg.Gazetteer.DSN())
	assert.InDelta(t, 250, cfg.Resolver.MaxDistKm, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "parse-cache.db", cfg.Cache.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
gazetteer:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GEOREF_GAZETTEER_DRIVER", "postgres")
	t.Setenv("GEOREF_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Gazetteer.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("GEOREF_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestEvaluatorMergesOverrides(t *testing.T) {
	rc := ResolverConfig{MaxDistKm: 200, MaxSites: 500}
	cfg := rc.Evaluator()

	assert.InDelta(t, 200, cfg.MaxDistKm, 0.001)
	assert.Equal(t, 500, cfg.MaxSites)
	// Unset knobs keep the built-in tuning.
	assert.InDelta(t, 50, cfg.ShelfWidthKm, 0.001)
	assert.InDelta(t, 10000, cfg.AdminRelaxKm, 0.001)
}

func TestValidateSQLiteRequiresPath(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "sqlite"

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gazetteer.sqlite_path is required")

	cfg.Gazetteer.SQLitePath = "gazetteer.db"
	assert.NoError(t, cfg.Validate("resolve"))
}

func TestValidatePostgresRequiresURL(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "postgres"

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gazetteer.database_url is required")
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "oracle"

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gazetteer.driver must be sqlite or postgres")
}

func TestValidateBatchConcurrencyBounds(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "sqlite"
	cfg.Gazetteer.SQLitePath = "gazetteer.db"

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 64")

	cfg.Batch.Concurrency = 65
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.Concurrency = 8
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateServePort(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "sqlite"
	cfg.Gazetteer.SQLitePath = "gazetteer.db"

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 9090
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := &Config{}
	cfg.Gazetteer.Driver = "sqlite"
	cfg.Gazetteer.SQLitePath = "gazetteer.db"

	err := cfg.Validate("replicate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
