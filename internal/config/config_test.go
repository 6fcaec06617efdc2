package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/similarity"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, 30, cfg.Enrich.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.Enrich.RequestsPerSecond, 0.001)
	assert.Equal(t, 3, cfg.Enrich.MaxRetries)
	assert.Equal(t, 10, cfg.Jobs.DefaultBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Jobs.InterChunkDelay())
	assert.InDelta(t, 75.0, cfg.Similarity.Threshold, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
log:
  level: debug
  format: console
server:
  port: 9090
jobs:
  default_batch_size: 25
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Jobs.DefaultBatchSize)
	// Defaults still apply for unset values
	assert.InDelta(t, 75.0, cfg.Similarity.Threshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADENGINE_STORE_DRIVER", "postgres")
	t.Setenv("LEADENGINE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestWeightSectionsFallBackToDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, similarity.DefaultWeights(), cfg.Similarity.EngineWeights())
	assert.Equal(t, scorer.DefaultWeights(), cfg.Scoring.ScorerWeights())
}

func TestWeightSectionsFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
similarity:
  weights:
    name: 0.5
    phone: 25
    email: 15
    address: 0.1
    website_bonus: 5
scoring:
  weights:
    contact_phone: 30
    fit_base: 10
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Similarity.EngineWeights().Name, 0.001)
	assert.InDelta(t, 25, cfg.Similarity.EngineWeights().Phone, 0.001)
	assert.Equal(t, 30, cfg.Scoring.ScorerWeights().ContactPhone)
	assert.Equal(t, 10, cfg.Scoring.ScorerWeights().FitBase)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("LEADENGINE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	cfg.Jobs.DefaultBatchSize = 10
	cfg.Similarity.Threshold = 75
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateEnrich(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrich.BaseURL = "https://api.enrichment.example.com"
	assert.NoError(t, cfg.Validate("enrich"))

	cfg.Enrich.BaseURL = ""
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.base_url is required")

	cfg.Enrich.BaseURL = "https://api.enrichment.example.com"
	cfg.Jobs.DefaultBatchSize = 0
	err = cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "default_batch_size must be between 1 and 1000")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 8080
	cfg.Similarity.Threshold = 101
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "similarity.threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
