package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHAT_ID", "12345")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/items_database.csv", cfg.ItemsDBPath)
	assert.Equal(t, "data/proxies.txt", cfg.ProxyListPath)
	assert.Equal(t, 25, cfg.MinVolume)
	assert.Equal(t, 2.0, cfg.FetchTimeoutMin)
	assert.Equal(t, 4.0, cfg.FetchTimeoutMax)
	assert.Equal(t, time.Duration(0), cfg.ScanInterval, "unattended scans are off by default")
	assert.Equal(t, "opportunities", cfg.RedisStream)
	assert.Empty(t, cfg.RedisAddr, "the stream sink is opt-in")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHAT_ID", "12345")
	t.Setenv("MIN_VOLUME_24H", "50")
	t.Setenv("SCAN_INTERVAL_SECONDS", "3600")
	t.Setenv("FETCH_TIMEOUT_MIN", "1.5")
	t.Setenv("FETCH_TIMEOUT_MAX", "3.5")

	cfg := LoadConfig()
	assert.Equal(t, 50, cfg.MinVolume)
	assert.Equal(t, time.Hour, cfg.ScanInterval)
	assert.Equal(t, 1.5, cfg.FetchTimeoutMin)
	assert.Equal(t, 3.5, cfg.FetchTimeoutMax)
}

func TestValidate(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("CHAT_ID", "")

	cfg := LoadConfig()
	assert.Error(t, cfg.Validate(), "bot token is required")

	cfg.BotToken = "token"
	assert.Error(t, cfg.Validate(), "chat id is required")

	cfg.ChatID = "12345"
	require.NoError(t, cfg.Validate())

	cfg.FetchTimeoutMax = cfg.FetchTimeoutMin - 1
	assert.Error(t, cfg.Validate(), "timeout range must be ascending")
}
