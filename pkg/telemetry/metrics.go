package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for reset orchestration. A nil
// *Metrics is a valid no-op collector.
type Metrics struct {
	config MetricsConfig

	resetsStarted   *prometheus.CounterVec
	resetsCompleted *prometheus.CounterVec
	resetDuration   *prometheus.HistogramVec

	phaseDuration *prometheus.HistogramVec
	purgePaths    *prometheus.CounterVec
	errorsByKind  *prometheus.CounterVec

	activeResets prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance: collectors stay nil and every record is skipped.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resetsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resets_started_total",
				Help:      "Total number of resets started",
			},
			[]string{"environment"},
		),
		resetsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resets_completed_total",
				Help:      "Total number of resets completed",
			},
			[]string{"status"},
		),
		resetDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reset_duration_seconds",
				Help:      "Duration of full reset execution in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of individual reset phases in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase", "status"},
		),
		purgePaths: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purge_paths_total",
				Help:      "Total number of state paths processed during purge",
			},
			[]string{"status"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of reset failures by failure kind",
			},
			[]string{"kind"},
		),
		activeResets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_resets",
				Help:      "Current number of in-flight resets",
			},
		),
	}

	registry.MustRegister(
		m.resetsStarted,
		m.resetsCompleted,
		m.resetDuration,
		m.phaseDuration,
		m.purgePaths,
		m.errorsByKind,
		m.activeResets,
	)

	return m, nil
}

// RecordResetStarted increments the counter for started resets.
func (m *Metrics) RecordResetStarted(environment string) {
	if m == nil || m.resetsStarted == nil {
		return
	}
	m.resetsStarted.WithLabelValues(environment).Inc()
	m.activeResets.Inc()
}

// RecordResetCompleted records a finished reset with its status and duration.
func (m *Metrics) RecordResetCompleted(status string, duration time.Duration) {
	if m == nil || m.resetsCompleted == nil {
		return
	}
	m.resetsCompleted.WithLabelValues(status).Inc()
	m.resetDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeResets.Dec()
}

// RecordPhaseDuration records the duration of one phase.
func (m *Metrics) RecordPhaseDuration(phase, status string, duration time.Duration) {
	if m == nil || m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase, status).Observe(duration.Seconds())
}

// RecordPurgePath records one processed state path.
func (m *Metrics) RecordPurgePath(status string) {
	if m == nil || m.purgePaths == nil {
		return
	}
	m.purgePaths.WithLabelValues(status).Inc()
}

// RecordFailure records a reset failure by failure kind.
func (m *Metrics) RecordFailure(kind string) {
	if m == nil || m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}
