// Package metrics exposes trakbot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trakbot",
		Name:      "commands_total",
		Help:      "Chat commands dispatched, by command name.",
	}, []string{"command"})

	commandErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trakbot",
		Name:      "command_errors_total",
		Help:      "Commands that ended in the generic apology, by command name.",
	}, []string{"command"})

	unmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trakbot",
		Name:      "unmatched_messages_total",
		Help:      "Inbound messages that matched no command.",
	})

	trackerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trakbot",
		Name:      "tracker_request_duration_seconds",
		Help:      "Latency of Pivotal Tracker API calls, by operation and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	sessionsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trakbot",
		Name:      "sessions_loaded",
		Help:      "User sessions currently held in memory.",
	})
)

// CommandDispatched counts one matched command.
func CommandDispatched(command string) {
	commandsTotal.WithLabelValues(command).Inc()
}

// CommandFailed counts one command answered with the generic apology.
func CommandFailed(command string) {
	commandErrorsTotal.WithLabelValues(command).Inc()
}

// Unmatched counts one message no command matched.
func Unmatched() {
	unmatchedTotal.Inc()
}

// ObserveTrackerRequest records the latency of one tracker API call.
func ObserveTrackerRequest(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	trackerRequestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// SetSessionsLoaded reports the number of cached sessions.
func SetSessionsLoaded(n int) {
	sessionsLoaded.Set(float64(n))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs a metrics HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.WithComponent("metrics").Info("Serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
