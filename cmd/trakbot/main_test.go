package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "trakbot v"+version) {
		t.Errorf("output = %q", out)
	}
}

func TestApplyStartFlags(t *testing.T) {
	cmd := newStartCmd(new(string))
	if err := cmd.ParseFlags([]string{"-c", "myteam", "-n", "pt", "-s", "irc.libera.chat", "-p", "6697", "--tls", "-l", "debug", "-y", "/tmp/s.db", "--workers", "4", "--metrics-addr", ":9100"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := config.DefaultConfig()
	var f startFlags
	f.channel, _ = cmd.Flags().GetString("channel")
	f.nick, _ = cmd.Flags().GetString("nick")
	f.server, _ = cmd.Flags().GetString("server")
	f.port, _ = cmd.Flags().GetInt("port")
	f.tls, _ = cmd.Flags().GetBool("tls")
	f.logLevel, _ = cmd.Flags().GetString("logging")
	f.storageFile, _ = cmd.Flags().GetString("storage-file")
	f.workers, _ = cmd.Flags().GetInt("workers")
	f.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	applyStartFlags(cmd, cfg, &f)

	if cfg.Chat.Channel != "myteam" || cfg.Chat.Nick != "pt" || cfg.Chat.Server != "irc.libera.chat" || cfg.Chat.Port != 6697 || !cfg.Chat.TLS {
		t.Errorf("chat config = %+v", cfg.Chat)
	}
	if cfg.Chat.FullName != "Pivotal Tracker IRC bot" {
		t.Errorf("unset flag should keep the default, got %q", cfg.Chat.FullName)
	}
	if cfg.Logging.Level != "debug" || cfg.Storage.Path != "/tmp/s.db" || cfg.Dispatch.Workers != 4 {
		t.Errorf("config = %+v %+v %+v", cfg.Logging, cfg.Storage, cfg.Dispatch)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != ":9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := execute(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.Nick != "trakbot" {
		t.Errorf("nick = %q", cfg.Chat.Nick)
	}

	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("expected refusal to overwrite without --force")
	}
	if _, err := execute(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestImportState(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state.yml")
	doc := "users:\n  alice:\n    token: test-tracker-token\n    current_project: 42\n"
	if err := os.WriteFile(state, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--config", filepath.Join(dir, "missing.yaml"), "import-state", "-y", filepath.Join(dir, "s.db"), state)
	if err != nil {
		t.Fatalf("import-state: %v", err)
	}
	if !strings.Contains(out, "Imported 1 users") {
		t.Errorf("output = %q", out)
	}
}
