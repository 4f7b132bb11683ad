// Package health checks that trakbot's configuration, storage and remote
// services are usable before it starts serving.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/config"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

// Status represents a check or feature status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// Check represents a health check result
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// FeatureStatus represents an optional feature and whether it is on
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// Report contains all health check results
type Report struct {
	Checks   []Check
	Features []FeatureStatus
}

// Checker runs the checks. Zero fields use the real network.
type Checker struct {
	// Resolve looks up a host name.
	Resolve func(ctx context.Context, host string) error
	// NewClient builds the tracker client used for the reachability check.
	NewClient func(baseURL string, timeout time.Duration) *tracker.Client
}

func (c *Checker) resolve(ctx context.Context, host string) error {
	if c.Resolve != nil {
		return c.Resolve(ctx, host)
	}
	_, err := net.DefaultResolver.LookupHost(ctx, host)
	return err
}

func (c *Checker) client(baseURL string, timeout time.Duration) *tracker.Client {
	if c.NewClient != nil {
		return c.NewClient(baseURL, timeout)
	}
	return tracker.NewClient(baseURL, "", timeout)
}

// Run performs every check against cfg.
func (c *Checker) Run(ctx context.Context, cfg *config.Config) *Report {
	report := &Report{}

	if err := cfg.Validate(); err != nil {
		report.Checks = append(report.Checks, Check{
			Name: "config", Status: StatusError, Message: err.Error(),
			Fix: "trakbot config init",
		})
		return report
	}
	report.Checks = append(report.Checks,
		Check{Name: "config", Status: StatusOK, Message: "valid"},
		c.checkStorage(ctx, cfg.Storage),
		c.checkTracker(ctx, cfg.Tracker),
		c.checkChat(ctx, cfg.Chat),
	)
	report.Features = checkFeatures(cfg)
	return report
}

func (c *Checker) checkStorage(ctx context.Context, cfg *config.StorageConfig) Check {
	store, err := session.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return Check{Name: "storage", Status: StatusError, Message: err.Error(), Fix: "check storage.path and storage.driver"}
	}
	defer func() { _ = store.Close() }()

	ids, err := store.Identities(ctx)
	if err != nil {
		return Check{Name: "storage", Status: StatusError, Message: err.Error()}
	}
	return Check{Name: "storage", Status: StatusOK, Message: fmt.Sprintf("%s (%d sessions)", cfg.Path, len(ids))}
}

// checkTracker probes the API without a token; an authentication error
// still proves the service answers.
func (c *Checker) checkTracker(ctx context.Context, cfg *config.TrackerConfig) Check {
	_, err := c.client(cfg.BaseURL, cfg.Timeout).Projects(ctx)
	switch {
	case err == nil, errors.Is(err, tracker.ErrUnauthorized):
		return Check{Name: "tracker", Status: StatusOK, Message: "reachable"}
	case errors.Is(err, tracker.ErrNotFound):
		return Check{Name: "tracker", Status: StatusWarning, Message: "answered 404", Fix: "check tracker.base_url"}
	}
	return Check{Name: "tracker", Status: StatusError, Message: err.Error(), Fix: "check network access to tracker.base_url"}
}

func (c *Checker) checkChat(ctx context.Context, cfg *config.ChatConfig) Check {
	host := cfg.Server
	if cfg.WebSocket() {
		u, err := url.Parse(cfg.Server)
		if err != nil {
			return Check{Name: "chat", Status: StatusError, Message: err.Error()}
		}
		host = u.Hostname()
	}
	if err := c.resolve(ctx, host); err != nil {
		return Check{Name: "chat", Status: StatusError, Message: fmt.Sprintf("cannot resolve %s: %v", host, err), Fix: "check chat.server"}
	}
	return Check{Name: "chat", Status: StatusOK, Message: host}
}

func checkFeatures(cfg *config.Config) []FeatureStatus {
	defaults := config.DefaultConfig()
	if cfg.Metrics == nil {
		cfg.Metrics = defaults.Metrics
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = defaults.Dispatch
	}
	features := []FeatureStatus{
		{Name: "websocket", Enabled: cfg.Chat.WebSocket(), Note: "IRC over WebSocket"},
		{Name: "tls", Enabled: cfg.Chat.TLS || strings.HasPrefix(cfg.Chat.Server, "wss://")},
		{Name: "metrics", Enabled: cfg.Metrics.Enabled},
		{Name: "workers", Enabled: cfg.Dispatch.Workers > 1, Note: fmt.Sprintf("%d", max(cfg.Dispatch.Workers, 1))},
	}
	if cfg.Metrics.Enabled {
		features[2].Note = cfg.Metrics.Address
	}
	for i := range features {
		features[i].Status = boolToStatus(features[i].Enabled)
	}
	return features
}

func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Summary counts errors and warnings.
func (r *Report) Summary() (errs, warnings int) {
	for _, c := range r.Checks {
		switch c.Status {
		case StatusError:
			errs++
		case StatusWarning:
			warnings++
		}
	}
	return errs, warnings
}

// Ready reports whether nothing failed.
func (r *Report) Ready() bool {
	errs, _ := r.Summary()
	return errs == 0
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
