package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/helper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Strategy.ATRLength)
	assert.Equal(t, 2.5, cfg.Strategy.ATRMultiplier)
	assert.Equal(t, 3*time.Minute, cfg.Strategy.EntryFilterRes)
	assert.Equal(t, 15*time.Minute, cfg.Strategy.TrendFilterRes)
	assert.Equal(t, helper.MustClock("11:30"), cfg.Trading.EntryCutoff)
	assert.Equal(t, helper.MustClock("14:25"), cfg.Trading.ExitCutoff)
	assert.Equal(t, 1500*time.Millisecond, cfg.Stream.MinInterval)
	assert.Equal(t, 20, cfg.Stream.Workers)
	assert.Equal(t, 10000, cfg.Stream.QueueSize)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	body := `
api:
  base_url: http://api.local/db
watchlist:
  from_api: false
  tokens: ["25", "26"]
strategy:
  atr_multiplier: 3
  entry_filter_resolution: 5m
trading:
  exit_cutoff: "15:00"
stream:
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv(databaseDSN, "postgres://u:p@db:5432/bot")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local/db", cfg.API.BaseURL)
	assert.Equal(t, []string{"25", "26"}, cfg.Watchlist.Tokens)
	assert.False(t, cfg.Watchlist.FromAPI)
	assert.Equal(t, 3.0, cfg.Strategy.ATRMultiplier)
	assert.Equal(t, 5*time.Minute, cfg.Strategy.EntryFilterRes)
	assert.Equal(t, helper.MustClock("15:00"), cfg.Trading.ExitCutoff)
	assert.Equal(t, 4, cfg.Stream.Workers)
	assert.Equal(t, "postgres://u:p@db:5432/bot", cfg.DB)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"clock":    "trading:\n  entry_cutoff: \"25:00\"\n",
		"workers":  "stream:\n  workers: 0\n",
		"strike":   "strategy:\n  strike_step: 0\n",
		"timezone": "trading:\n  timezone: Mars/Olympus\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "values.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
