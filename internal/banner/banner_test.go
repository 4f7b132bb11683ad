package banner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/config"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/health"
)

func TestStartupBanner(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chat.TLS = true
	cfg.Metrics.Enabled = true

	var buf bytes.Buffer
	StartupBanner(&buf, "1.2.3", cfg)
	out := buf.String()

	for _, want := range []string{Tagline, "v1.2.3", "irc.freenode.net:6667 (tls)", "#traktest as trakbot", "trakbot.db (sqlite)", "http://127.0.0.1:9464/metrics"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestStartupBannerWebSocket(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chat.Server = "wss://irc.example.com/webirc"

	var buf bytes.Buffer
	StartupBanner(&buf, "1.2.3", cfg)

	if !strings.Contains(buf.String(), "Server:   wss://irc.example.com/webirc\n") {
		t.Errorf("unexpected banner:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Metrics:") {
		t.Error("metrics line should be omitted when disabled")
	}
}

func TestStartupBannerPlainOutsideTerminal(t *testing.T) {
	var buf bytes.Buffer
	StartupBanner(&buf, "1.2.3", config.DefaultConfig())

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("banner written to a buffer should carry no escape codes:\n%q", buf.String())
	}
}

func TestHealthReport(t *testing.T) {
	report := &health.Report{
		Checks: []health.Check{
			{Name: "config", Status: health.StatusOK, Message: "valid"},
			{Name: "tracker", Status: health.StatusError, Message: "unreachable", Fix: "check tracker.base_url"},
		},
		Features: []health.FeatureStatus{
			{Name: "metrics", Status: health.StatusDisabled, Note: "metrics.enabled is false"},
		},
	}

	tests := []struct {
		name    string
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name:    "quiet",
			want:    []string{"trakbot Health Check", "  ✓ config     valid\n", "  ✗ tracker    unreachable\n", "  · metrics (metrics.enabled is false)\n"},
			notWant: []string{"check tracker.base_url"},
		},
		{
			name:    "verbose",
			verbose: true,
			want:    []string{"→ check tracker.base_url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			HealthReport(&buf, report, tt.verbose)
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("report missing %q:\n%s", want, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("report should not contain %q:\n%s", nw, out)
				}
			}
		})
	}
}
