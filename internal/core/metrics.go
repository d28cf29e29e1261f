package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "surveycore"

// PrometheusRecorder implements MetricsRecorder and SurveyGauge with
// Prometheus collectors.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	surveys    prometheus.Gauge
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		surveys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "surveys",
			Help:      "Number of stored survey responses.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.operations, r.durations, r.surveys} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Observe counts the operation and records its latency.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetSurveys updates the stored survey gauge.
func (r *PrometheusRecorder) SetSurveys(n int) { r.surveys.Set(float64(n)) }

// Collectors exposes the underlying collectors for tests.
func (r *PrometheusRecorder) Collectors() (*prometheus.CounterVec, prometheus.Gauge) {
	return r.operations, r.surveys
}
