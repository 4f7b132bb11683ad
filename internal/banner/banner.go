// Package banner prints trakbot's startup banner and health report.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/config"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/health"
)

// Logo is the ASCII art logo for trakbot
const Logo = `
  _             _    _           _
 | |_ _ __ __ _| | _| |__   ___ | |_
 | __| '__/ _' | |/ / '_ \ / _ \| __|
 | |_| | | (_| |   <| |_) | (_) | |_
  \__|_|  \__,_|_|\_\_.__/ \___/ \__|
`

// Tagline is the project tagline
const Tagline = "Pivotal Tracker from your IRC channel"

// StartupBanner writes the logo followed by where the bot is going.
func StartupBanner(w io.Writer, version string, cfg *config.Config) {
	st := newStyles(w)
	line := func(label, value string) {
		fmt.Fprintf(w, "   %s %s\n", st.label.Render(fmt.Sprintf("%-9s", label+":")), st.value.Render(value))
	}

	fmt.Fprint(w, st.logo.Render(Logo))
	fmt.Fprintf(w, "   %s\n", st.dim.Render(Tagline))
	fmt.Fprintln(w)
	line("Version", "v"+version)
	line("Server", serverLabel(cfg.Chat))
	line("Channel", fmt.Sprintf("%s as %s", chat.ChannelName(cfg.Chat.Channel), cfg.Chat.Nick))
	line("Storage", fmt.Sprintf("%s (%s)", cfg.Storage.Path, cfg.Storage.Driver))
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		line("Metrics", fmt.Sprintf("http://%s/metrics", cfg.Metrics.Address))
	}
	fmt.Fprintln(w)
}

func serverLabel(c *config.ChatConfig) string {
	if c.WebSocket() {
		return c.Server
	}
	label := fmt.Sprintf("%s:%d", c.Server, c.Port)
	if c.TLS {
		label += " (tls)"
	}
	return label
}

// HealthReport writes the doctor report. With verbose set, failed checks
// are followed by their fix.
func HealthReport(w io.Writer, report *health.Report, verbose bool) {
	st := newStyles(w)
	title := "trakbot Health Check"

	fmt.Fprintln(w, st.title.Render(title))
	fmt.Fprintln(w, st.dim.Render(strings.Repeat("=", len(title))))
	fmt.Fprintln(w)
	for _, c := range report.Checks {
		fmt.Fprintf(w, "  %s %s %s\n", st.status(c.Status), st.label.Render(fmt.Sprintf("%-10s", c.Name)), c.Message)
		if verbose && c.Fix != "" && c.Status != health.StatusOK {
			fmt.Fprintf(w, "               %s\n", st.dim.Render("→ "+c.Fix))
		}
	}
	if len(report.Features) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.title.Render("Features:"))
		for _, f := range report.Features {
			note := ""
			if f.Note != "" {
				note = st.dim.Render(" (" + f.Note + ")")
			}
			fmt.Fprintf(w, "  %s %s%s\n", st.status(f.Status), f.Name, note)
		}
	}
	fmt.Fprintln(w)
}
