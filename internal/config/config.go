package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Twitch     TwitchConfig
	Poll       PollConfig
	Automation AutomationConfig
	Update     UpdateConfig
	Logging    LogConfig
	Paths      PathsConfig
}

// ServerConfig holds the loopback IPC server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"4790"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// TwitchConfig holds streaming-platform API configuration.
type TwitchConfig struct {
	APIURL   string `envconfig:"TWITCH_API_URL" default:"https://api.twitch.tv"`
	ClientID string `envconfig:"TWITCH_CLIENT_ID" default:"m65puodpp4i8bvfrb27k1mrxr84e3z"`
	Token    string `envconfig:"TWITCH_TOKEN"`
	// EmbedParent is the registered parent domain for player embed URLs.
	EmbedParent string `envconfig:"TWITCH_EMBED_PARENT" default:"localhost"`
}

// PollConfig holds liveness polling configuration.
type PollConfig struct {
	// WatchInterval is the cadence of the per-session liveness watch.
	WatchInterval time.Duration `envconfig:"POLL_WATCH_INTERVAL" default:"20s"`
	// Timeout bounds a single status query; expiry counts as a failed query.
	Timeout time.Duration `envconfig:"POLL_TIMEOUT" default:"10s"`
}

// AutomationConfig holds companion automation configuration.
type AutomationConfig struct {
	ClaimInterval time.Duration `envconfig:"AUTOMATION_CLAIM_INTERVAL" default:"30s"`
}

// UpdateConfig holds update-check configuration.
type UpdateConfig struct {
	Endpoint string `envconfig:"UPDATE_ENDPOINT" default:"https://api.github.com/repos/pipcast/pipcast/releases/latest"`
	Enabled  bool   `envconfig:"UPDATE_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// PathsConfig holds filesystem locations for durable and runtime state.
type PathsConfig struct {
	// DataDir holds the preference store. Empty means the OS user config dir.
	DataDir string `envconfig:"DATA_DIR"`
	// RuntimeDir holds the pidfile and instance socket. Empty means os.TempDir.
	RuntimeDir string `envconfig:"RUNTIME_DIR"`
}

// Load loads configuration from PIPCAST_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pipcast", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyPathDefaults()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "4790",
			Host: "127.0.0.1",
		},
		Twitch: TwitchConfig{
			APIURL:      "https://api.twitch.tv",
			ClientID:    "m65puodpp4i8bvfrb27k1mrxr84e3z",
			EmbedParent: "localhost",
		},
		Poll: PollConfig{
			WatchInterval: 20 * time.Second,
			Timeout:       10 * time.Second,
		},
		Automation: AutomationConfig{
			ClaimInterval: 30 * time.Second,
		},
		Update: UpdateConfig{
			Endpoint: "https://api.github.com/repos/pipcast/pipcast/releases/latest",
			Enabled:  true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
	cfg.applyPathDefaults()
	return cfg
}

func (c *Config) applyPathDefaults() {
	if c.Paths.DataDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Paths.DataDir = filepath.Join(dir, "pipcast")
		} else {
			c.Paths.DataDir = "."
		}
	}
	if c.Paths.RuntimeDir == "" {
		c.Paths.RuntimeDir = filepath.Join(os.TempDir(), "pipcast")
	}
}
