package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"FUELCAST_ADDR", "FUELCAST_DB", "FUELCAST_LOG_LEVEL", "FUELCAST_DRIVER_TABLE", "FUELCAST_CORS_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "fuelcast.db", cfg.DBPath)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.DriverTable)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestLoad_EnvironmentAndDotEnv(t *testing.T) {
	// GIVEN: a .env file and one variable already set in the environment
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"FUELCAST_DB=/var/lib/fuel.db\nFUELCAST_LOG_LEVEL=warn\nFUELCAST_CORS_ORIGINS=https://a.example,https://b.example\n"), 0o600))
	t.Setenv("FUELCAST_LOG_LEVEL", "debug")
	t.Setenv("FUELCAST_DB", "")
	os.Unsetenv("FUELCAST_DB")
	t.Setenv("FUELCAST_CORS_ORIGINS", "")
	os.Unsetenv("FUELCAST_CORS_ORIGINS")

	// WHEN: loading
	cfg, err := config.Load(path, filepath.Join(dir, "missing.env"))

	// THEN: the file fills the gaps and the environment wins
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/fuel.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("FUELCAST_LOG_LEVEL", "loud")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("FUELCAST_LOG_LEVEL", "info")
	t.Setenv("FUELCAST_LOG_FORMAT", "xml")
	_, err = config.Load()
	assert.Error(t, err)

	t.Setenv("FUELCAST_LOG_FORMAT", "json")
	t.Setenv("FUELCAST_SHUTDOWN_TIMEOUT", "soon")
	_, err = config.Load()
	assert.Error(t, err)
}
