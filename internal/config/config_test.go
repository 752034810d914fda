package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "4790", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://api.twitch.tv", cfg.Twitch.APIURL)
	assert.Equal(t, "localhost", cfg.Twitch.EmbedParent)
	assert.Equal(t, 20*time.Second, cfg.Poll.WatchInterval)
	assert.Equal(t, 10*time.Second, cfg.Poll.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Automation.ClaimInterval)
	assert.True(t, cfg.Update.Enabled)
	assert.NotEmpty(t, cfg.Paths.DataDir)
	assert.NotEmpty(t, cfg.Paths.RuntimeDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PIPCAST_PORT", "5123")
	t.Setenv("PIPCAST_POLL_WATCH_INTERVAL", "5s")
	t.Setenv("PIPCAST_TWITCH_TOKEN", "secret")
	t.Setenv("PIPCAST_DATA_DIR", "/tmp/pipcast-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5123", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Poll.WatchInterval)
	assert.Equal(t, "secret", cfg.Twitch.Token)
	assert.Equal(t, "/tmp/pipcast-test", cfg.Paths.DataDir)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("PIPCAST_POLL_TIMEOUT", "not-a-duration")

	cfg := LoadOrDefault()
	assert.Equal(t, 10*time.Second, cfg.Poll.Timeout)
}
