package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AGORA_API_URL", "AGORA_CONFIG_DIR", "AGORA_HTTP_TIMEOUT", "AGORA_POLL_INTERVAL",
		"AGORA_RECONCILE_DELAY", "AGORA_POSTS_PAGE", "AGORA_MESSAGES_PAGE", "AGORA_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	cfg := Load()
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, filepath.Join("/tmp/xdg", "agora"), cfg.ConfigDir)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconcileDelay)
	assert.Equal(t, 20, cfg.PostsPageSize)
	assert.Equal(t, 50, cfg.MessagesPageSize)
	assert.False(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGORA_API_URL", "https://api.example.com/")
	t.Setenv("AGORA_CONFIG_DIR", "/srv/agora")
	t.Setenv("AGORA_POLL_INTERVAL", "3s")
	t.Setenv("AGORA_POSTS_PAGE", "5")
	t.Setenv("AGORA_DEBUG", "true")
	t.Setenv("AGORA_MESSAGES_PAGE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "/srv/agora", cfg.ConfigDir)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.PostsPageSize)
	assert.Equal(t, 50, cfg.MessagesPageSize, "bad int falls back to default")
	assert.True(t, cfg.Debug)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := Load()
	base.ConfigDir = "/tmp/agora"

	cases := []struct {
		name string
		mut  func(c *Config)
	}{
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://host" }},
		{"no host", func(c *Config) { c.APIURL = "http://" }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"negative reconcile", func(c *Config) { c.ReconcileDelay = -time.Second }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"zero page", func(c *Config) { c.PostsPageSize = 0 }},
		{"no dir", func(c *Config) { c.ConfigDir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := *base
			tc.mut(&c)
			require.Error(t, c.Validate())
		})
	}
}
