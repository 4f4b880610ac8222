package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "rlchess"

// Metrics holds the client's Prometheus collectors. It satisfies the
// entitysync and lobby observer interfaces.
type Metrics struct {
	Registry *prometheus.Registry

	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	updates        *prometheus.CounterVec
	updateFailures *prometheus.CounterVec
	drops          *prometheus.CounterVec
}

// NewMetrics registers the collectors in a fresh registry, along with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_total",
			Help:      "Submitted actions by outcome.",
		}, []string{"action", "status"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "action_duration_seconds",
			Help:      "Time from submission to confirmation or failure.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "updates_applied_total",
			Help:      "Component updates written to the local store.",
		}, []string{"component"}),
		updateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "updates_failed_total",
			Help:      "Component updates the sync loop could not apply.",
		}, []string{"component"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "subscriber_drops_total",
			Help:      "Updates dropped because a subscriber's buffer was full.",
		}, []string{"component"}),
	}
	reg.MustRegister(
		m.actions, m.actionDuration, m.updates, m.updateFailures, m.drops,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ActionFinished records one action outcome.
func (m *Metrics) ActionFinished(action, status string, d time.Duration) {
	m.actions.WithLabelValues(action, status).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// UpdateApplied counts a stored component update.
func (m *Metrics) UpdateApplied(component string) {
	m.updates.WithLabelValues(component).Inc()
}

// UpdateFailed counts an update the loop rejected.
func (m *Metrics) UpdateFailed(component string) {
	m.updateFailures.WithLabelValues(component).Inc()
}

// SubscriberDropped counts an update a subscriber missed.
func (m *Metrics) SubscriberDropped(component string) {
	m.drops.WithLabelValues(component).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("metrics listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
