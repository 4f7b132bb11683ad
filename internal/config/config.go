// Package config loads trakbot's YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Chat     *ChatConfig     `yaml:"chat"`
	Tracker  *TrackerConfig  `yaml:"tracker"`
	Storage  *StorageConfig  `yaml:"storage"`
	Logging  *logging.Config `yaml:"logging"`
	Dispatch *DispatchConfig `yaml:"dispatch"`
	Metrics  *MetricsConfig  `yaml:"metrics"`
}

// ChatConfig holds the IRC connection and bot identity settings.
type ChatConfig struct {
	Server   string `yaml:"server"` // hostname, or ws:// / wss:// URL for IRC over WebSocket
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Password string `yaml:"password"`
	Nick     string `yaml:"nick"`
	FullName string `yaml:"full_name"`
	Channel  string `yaml:"channel"` // without the leading '#'

	// ListAlias re-lists the last search without the trigger prefix.
	ListAlias string `yaml:"list_alias"`

	// Outbound flood control.
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

// TrackerConfig holds Pivotal Tracker API settings.
type TrackerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // bound on the remote calls made for one message
}

// StorageConfig holds session persistence settings.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	Path   string `yaml:"path"`
}

// DispatchConfig controls how inbound messages are processed.
type DispatchConfig struct {
	// Workers > 1 runs handlers concurrently; one identity is still served
	// one message at a time.
	Workers int `yaml:"workers"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DefaultConfig returns a configuration with the bot's historical defaults.
func DefaultConfig() *Config {
	return &Config{
		Chat: &ChatConfig{
			Server:            "irc.freenode.net",
			Port:              6667,
			Nick:              "trakbot",
			FullName:          "Pivotal Tracker IRC bot",
			Channel:           "traktest",
			ListAlias:         "..",
			MessagesPerSecond: 2,
			Burst:             4,
		},
		Tracker: &TrackerConfig{
			BaseURL: "https://www.pivotaltracker.com/services/v5",
			Timeout: 20 * time.Second,
		},
		Storage: &StorageConfig{
			Driver: "sqlite",
			Path:   "trakbot.db",
		},
		Logging: logging.DefaultConfig(),
		Dispatch: &DispatchConfig{
			Workers: 1,
		},
		Metrics: &MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Tokens and passwords are usually injected through the environment.
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Storage != nil {
		config.Storage.Path = expandPath(config.Storage.Path)
	}
	if config.Logging != nil {
		switch config.Logging.Output {
		case "", "stdout", "stderr":
		default:
			config.Logging.Output = expandPath(config.Logging.Output)
		}
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".trakbot", "config.yaml")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// WebSocket reports whether the chat server is an IRC-over-WebSocket URL.
func (c *ChatConfig) WebSocket() bool {
	return strings.HasPrefix(c.Server, "ws://") || strings.HasPrefix(c.Server, "wss://")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.Nick == "" {
		return fmt.Errorf("chat.nick is required")
	}
	if strings.ContainsAny(c.Chat.Nick, " \t\r\n") {
		return fmt.Errorf("chat.nick %q must not contain whitespace", c.Chat.Nick)
	}
	if c.Chat.Channel == "" {
		return fmt.Errorf("chat.channel is required")
	}
	if c.Chat.Server == "" {
		return fmt.Errorf("chat.server is required")
	}
	if c.Chat.WebSocket() {
		if _, err := url.Parse(c.Chat.Server); err != nil {
			return fmt.Errorf("invalid chat.server URL: %w", err)
		}
	} else if c.Chat.Port < 1 || c.Chat.Port > 65535 {
		return fmt.Errorf("invalid chat.port: %d", c.Chat.Port)
	}
	if c.Chat.MessagesPerSecond < 0 {
		return fmt.Errorf("chat.messages_per_second must not be negative")
	}

	if c.Tracker == nil || c.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker.base_url is required")
	}
	if c.Tracker.Timeout <= 0 {
		return fmt.Errorf("tracker.timeout must be positive")
	}

	if c.Storage == nil || c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	switch c.Storage.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unknown storage.driver %q (want sqlite or sqlite3)", c.Storage.Driver)
	}

	if c.Logging != nil && c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	if c.Dispatch != nil && c.Dispatch.Workers < 0 {
		return fmt.Errorf("dispatch.workers must not be negative")
	}
	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	return nil
}
