package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chat.Nick != "trakbot" {
		t.Errorf("Chat.Nick = %q, want trakbot", cfg.Chat.Nick)
	}
	if cfg.Chat.Channel != "traktest" {
		t.Errorf("Chat.Channel = %q, want traktest", cfg.Chat.Channel)
	}
	if cfg.Chat.Server != "irc.freenode.net" || cfg.Chat.Port != 6667 {
		t.Errorf("Chat server = %s:%d", cfg.Chat.Server, cfg.Chat.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Tracker.Timeout != 20*time.Second {
		t.Errorf("Tracker.Timeout = %v", cfg.Tracker.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Chat.Nick != "trakbot" {
			t.Errorf("expected defaults, got nick %q", cfg.Chat.Nick)
		}
	})

	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Chat.Channel != "traktest" {
			t.Errorf("expected defaults, got channel %q", cfg.Chat.Channel)
		}
	})

	t.Run("overrides and env expansion", func(t *testing.T) {
		t.Setenv("TRAKBOT_TEST_PASSWORD", "s3cret")
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
chat:
  nick: pivbot
  channel: dev
  password: ${TRAKBOT_TEST_PASSWORD}
tracker:
  timeout: 5s
storage:
  driver: sqlite3
  path: ~/trakbot/state.db
dispatch:
  workers: 4
`
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Chat.Nick != "pivbot" || cfg.Chat.Channel != "dev" {
			t.Errorf("chat = %+v", cfg.Chat)
		}
		if cfg.Chat.Password != "s3cret" {
			t.Errorf("password not expanded: %q", cfg.Chat.Password)
		}
		if cfg.Chat.Port != 6667 {
			t.Errorf("unset port should keep default, got %d", cfg.Chat.Port)
		}
		if cfg.Tracker.Timeout != 5*time.Second {
			t.Errorf("timeout = %v", cfg.Tracker.Timeout)
		}
		if cfg.Storage.Driver != "sqlite3" {
			t.Errorf("driver = %q", cfg.Storage.Driver)
		}
		if strings.HasPrefix(cfg.Storage.Path, "~") {
			t.Errorf("storage path not expanded: %q", cfg.Storage.Path)
		}
		if cfg.Dispatch.Workers != 4 {
			t.Errorf("workers = %d", cfg.Dispatch.Workers)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("chat: [nope"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Chat.Nick = "roundtrip"
	cfg.Tracker.Timeout = 3 * time.Second

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Chat.Nick != "roundtrip" {
		t.Errorf("nick = %q", loaded.Chat.Nick)
	}
	if loaded.Tracker.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", loaded.Tracker.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{name: "missing nick", mutate: func(c *Config) { c.Chat.Nick = "" }, wantErr: "chat.nick"},
		{name: "nick with space", mutate: func(c *Config) { c.Chat.Nick = "trak bot" }, wantErr: "whitespace"},
		{name: "missing channel", mutate: func(c *Config) { c.Chat.Channel = "" }, wantErr: "chat.channel"},
		{name: "bad port", mutate: func(c *Config) { c.Chat.Port = 70000 }, wantErr: "chat.port"},
		{name: "websocket ignores port", mutate: func(c *Config) { c.Chat.Server = "wss://irc.example.test/webirc"; c.Chat.Port = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.Tracker.Timeout = 0 }, wantErr: "tracker.timeout"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "storage.driver"},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "logging.level"},
		{name: "negative workers", mutate: func(c *Config) { c.Dispatch.Workers = -1 }, wantErr: "dispatch.workers"},
		{name: "metrics without address", mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" }, wantErr: "metrics.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
