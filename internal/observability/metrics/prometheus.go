package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/esrnn/pkg/constants"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PrometheusMetrics records forward-pass instrumentation in its own registry.
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *PrometheusConfig

	forwardPassesTotal *prometheus.CounterVec
	forwardDuration    *prometheus.HistogramVec
	windowsPerPass     *prometheus.HistogramVec
	seriesTotal        *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	parameterSnapshots prometheus.Counter
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// RecordForward records a successful forward pass.
func (pm *PrometheusMetrics) RecordForward(mode string, windows, series int, duration time.Duration) {
	pm.forwardPassesTotal.WithLabelValues(mode, StatusSuccess).Inc()
	pm.forwardDuration.WithLabelValues(mode).Observe(duration.Seconds())
	pm.windowsPerPass.WithLabelValues(mode).Observe(float64(windows))
	pm.seriesTotal.WithLabelValues(mode).Add(float64(series))
}

// RecordFailure records an aborted forward pass and the category of its error.
func (pm *PrometheusMetrics) RecordFailure(mode, errorType string, duration time.Duration) {
	pm.forwardPassesTotal.WithLabelValues(mode, StatusError).Inc()
	pm.forwardDuration.WithLabelValues(mode).Observe(duration.Seconds())
	pm.errorsTotal.WithLabelValues(mode, errorType).Inc()
}

// RecordSnapshot counts parameter snapshots taken from the store.
func (pm *PrometheusMetrics) RecordSnapshot() {
	pm.parameterSnapshots.Inc()
}

// WriteToTextfile dumps the registry in the text exposition format, for
// collection by a node exporter textfile collector.
func (pm *PrometheusMetrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	pm.logger.WithField("path", path).Debug("Metrics written")
	return nil
}

// initializeMetrics initializes all Prometheus metrics
func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	subsystem := pm.config.Subsystem

	pm.forwardPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "forward_passes_total",
			Help:      "Total number of forward passes",
		},
		[]string{"mode", "status"},
	)

	pm.forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "forward_duration_seconds",
			Help:      "Forward pass duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	pm.windowsPerPass = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "windows_per_pass",
			Help:      "Number of windows produced by a forward pass",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"mode"},
	)

	pm.seriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_processed_total",
			Help:      "Total number of series processed",
		},
		[]string{"mode"},
	)

	pm.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of aborted forward passes by error type",
		},
		[]string{"mode", "type"},
	)

	pm.parameterSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parameter_snapshots_total",
			Help:      "Total number of parameter store snapshots",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() error {
	metrics := []prometheus.Collector{
		pm.forwardPassesTotal,
		pm.forwardDuration,
		pm.windowsPerPass,
		pm.seriesTotal,
		pm.errorsTotal,
		pm.parameterSnapshots,
	}

	for _, metric := range metrics {
		if err := pm.registry.Register(metric); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetConfig returns the configuration
func (pm *PrometheusMetrics) GetConfig() *PrometheusConfig {
	return pm.config
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace: constants.DefaultMetricsPrefix,
		Subsystem: "model",
	}
}
