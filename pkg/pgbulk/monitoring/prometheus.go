// Package monitoring exports bulk upsert measurements to Prometheus.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

const namespace = "pgbulk"

// PrometheusMetrics implements pgbulk.MetricsReporter on a private registry.
type PrometheusMetrics struct {
	phaseDuration *prometheus.HistogramVec
	rows          *prometheus.CounterVec
	errors        *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ pgbulk.MetricsReporter = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collectors and registers them.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Time from the start of a bulk upsert until it reached a phase",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
			},
			[]string{"table", "phase"},
		),

		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows staged and rows affected by the merge",
			},
			[]string{"table", "kind"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed bulk upserts by the last phase they reached",
			},
			[]string{"table", "phase"},
		),

		registry: registry,
	}

	registry.MustRegister(pm.phaseDuration, pm.rows, pm.errors)
	return pm
}

func (pm *PrometheusMetrics) ObservePhase(table string, phase pgbulk.Phase, d time.Duration) {
	pm.phaseDuration.WithLabelValues(table, phase.String()).Observe(d.Seconds())
}

func (pm *PrometheusMetrics) AddRows(table string, kind string, n int64) {
	if n <= 0 {
		return
	}
	pm.rows.WithLabelValues(table, kind).Add(float64(n))
}

func (pm *PrometheusMetrics) IncError(table string, phase pgbulk.Phase) {
	pm.errors.WithLabelValues(table, phase.String()).Inc()
}

// Registry exposes the private registry, mostly for tests and embedding.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway under job. Batch runs are
// too short-lived to be scraped, so the CLI pushes once at exit.
func (pm *PrometheusMetrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required: %w", pgbulk.ErrInvalidOptions)
	}
	if err := push.New(url, job).Gatherer(pm.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
