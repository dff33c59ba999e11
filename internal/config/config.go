package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for wechatsdk-bridge.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Listener  ListenerConfig  `yaml:"listener"`
	Cache     CacheConfig     `yaml:"cache"`
	Archive   ArchiveConfig   `yaml:"archive"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Media     MediaConfig     `yaml:"media"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig points at the external automation process.
type APIConfig struct {
	URL      string `yaml:"url"`
	Protocol string `yaml:"protocol"` // "http" or "ws" push delivery
}

// ListenerConfig controls the push ingestion listener. Host and port may be
// overridden with the WXBOT_HOST / WXBOT_PORT environment variables.
type ListenerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig sets the capacities of the bounded in-memory stores.
type CacheConfig struct {
	Contacts int `yaml:"contacts"`
	Rooms    int `yaml:"rooms"`
	Messages int `yaml:"messages"`
}

// ArchiveConfig controls the optional Postgres message archive.
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URI          string `yaml:"uri"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RateLimitConfig throttles outbound sends.
type RateLimitConfig struct {
	MessagesPerMinute int `yaml:"messages_per_minute"`
}

// MediaConfig controls the local media cache.
type MediaConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	MinLevel string `yaml:"min_level"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid and sets defaults.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if c.API.Protocol == "" {
		c.API.Protocol = "http"
	}
	if c.API.Protocol != "http" && c.API.Protocol != "ws" {
		return fmt.Errorf("api.protocol must be %q or %q, got %q", "http", "ws", c.API.Protocol)
	}

	if c.Listener.Host == "" {
		c.Listener.Host = "127.0.0.1"
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = 4000
	}
	if host := os.Getenv("WXBOT_HOST"); host != "" {
		c.Listener.Host = host
	}
	if port := os.Getenv("WXBOT_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("WXBOT_PORT: %w", err)
		}
		c.Listener.Port = p
	}

	if c.Cache.Contacts == 0 {
		c.Cache.Contacts = 4096
	}
	if c.Cache.Rooms == 0 {
		c.Cache.Rooms = 512
	}
	if c.Cache.Messages == 0 {
		c.Cache.Messages = 8192
	}

	if c.Archive.Enabled {
		if c.Archive.URI == "" {
			return fmt.Errorf("archive.uri is required when archive is enabled")
		}
		if c.Archive.MaxOpenConns == 0 {
			c.Archive.MaxOpenConns = 10
		}
		if c.Archive.MaxIdleConns == 0 {
			c.Archive.MaxIdleConns = 2
		}
	}

	if c.RateLimit.MessagesPerMinute == 0 {
		c.RateLimit.MessagesPerMinute = 30
	}

	if c.Media.DataDir == "" {
		c.Media.DataDir = "data"
	}

	if c.Logging.MinLevel == "" {
		c.Logging.MinLevel = "info"
	}

	return nil
}
