package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: kaburadar
  env: dev
database:
  driver: memory
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tokyo", cfg.App.Timezone)
	assert.Equal(t, DefaultWindow1WDays, cfg.Signal.Window1WDays)
	assert.Equal(t, DefaultWindow3MDays, cfg.Signal.Window3MDays)
	assert.Equal(t, DefaultWindow1YDays, cfg.Signal.Window1YDays)
	assert.Equal(t, DefaultCooldownHours, cfg.Signal.CooldownHours)
	assert.Equal(t, DefaultMaxWatchItems, cfg.Watchlist.MaxItems)
	assert.Equal(t, "8080", cfg.API.Port)
	assert.Equal(t, 10, cfg.API.ReadTimeoutSec)
	assert.Equal(t, "0 30 15 * * 1-5", cfg.Scheduler.DailySpec)
	assert.Equal(t, "0 0 21 * * 1-5", cfg.Scheduler.Night21Spec)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigWindowOrderFatal(t *testing.T) {
	path := writeConfigFile(t, `
signal:
  window_1w_days: 63
  window_3m_days: 5
  window_1y_days: 252
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1W <= 3M <= 1Y")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("WINDOW_1W_DAYS", "3")
	t.Setenv("COOLDOWN_HOURS", "6")
	t.Setenv("DB_DRIVER", "memory")

	path := writeConfigFile(t, `
signal:
  window_1w_days: 5
database:
  driver: postgres
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Signal.Window1WDays)
	assert.Equal(t, 6, cfg.Signal.CooldownHours)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
