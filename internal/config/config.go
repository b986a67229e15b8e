// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const appDir = "agora"

// Config holds every tunable of the client.
type Config struct {
	APIURL    string
	ConfigDir string

	HTTPTimeout    time.Duration
	PollInterval   time.Duration
	ReconcileDelay time.Duration

	PostsPageSize    int
	MessagesPageSize int

	Debug bool
}

// Load reads the environment and applies defaults. It does not validate;
// callers apply flag overrides first and then call Validate.
func Load() *Config {
	return &Config{
		APIURL:    strings.TrimRight(getEnv("AGORA_API_URL", "http://localhost:8000"), "/"),
		ConfigDir: getEnv("AGORA_CONFIG_DIR", defaultConfigDir()),

		HTTPTimeout:    getEnvAsDuration("AGORA_HTTP_TIMEOUT", 30*time.Second),
		PollInterval:   getEnvAsDuration("AGORA_POLL_INTERVAL", 1500*time.Millisecond),
		ReconcileDelay: getEnvAsDuration("AGORA_RECONCILE_DELAY", 500*time.Millisecond),

		PostsPageSize:    getEnvAsInt("AGORA_POSTS_PAGE", 20),
		MessagesPageSize: getEnvAsInt("AGORA_MESSAGES_PAGE", 50),

		Debug: getEnvAsBool("AGORA_DEBUG", false),
	}
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("AGORA_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("AGORA_API_URL: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("AGORA_API_URL: host is required")
	}
	if c.ConfigDir == "" {
		return fmt.Errorf("AGORA_CONFIG_DIR is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("AGORA_HTTP_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("AGORA_POLL_INTERVAL must be positive")
	}
	if c.ReconcileDelay <= 0 {
		return fmt.Errorf("AGORA_RECONCILE_DELAY must be positive")
	}
	if c.PostsPageSize <= 0 || c.MessagesPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	return nil
}

func defaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, appDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appDir)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
